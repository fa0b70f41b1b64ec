package manual

// Health score blending. A replay outcome moves the long-lived score through
// an exponential moving average: a fully successful run always raises the
// score (bounded at 1.0), a fully failed run decays it toward zero without
// a single-failure hard delete. Scores that decay below healthFloor snap to
// 0 so dead manuals actually leave the lookup rotation.
const (
	healthAlpha = 0.3
	healthFloor = 0.05

	// failedRunDiscount shrinks a failed replay's run contribution below
	// the prior, so the aggregate score moves down even when most of the
	// run's individual steps succeeded.
	failedRunDiscount = 0.5
)

// BlendHealth folds one replay outcome into the prior score. runScore is
// the succeeded/attempted ratio of the replay, in [0,1].
func BlendHealth(prior, runScore float64) float64 {
	if prior < 0 {
		prior = 0
	} else if prior > 1 {
		prior = 1
	}
	if runScore < 0 {
		runScore = 0
	} else if runScore > 1 {
		runScore = 1
	}
	s := (1-healthAlpha)*prior + healthAlpha*runScore
	if s < healthFloor {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// RecordOutcome applies a replay outcome to the manual's aggregate score and
// to the steps that were actually attempted; steps past an early abort keep
// their score. Step orders refer to replay order. A failed replay always
// lowers the aggregate score, no matter how high its step ratio was.
func (m *Manual) RecordOutcome(success bool, attempted, succeeded int, failedOrders map[int]bool) {
	run := 0.0
	if attempted > 0 {
		run = float64(succeeded) / float64(attempted)
	}
	if !success {
		if run > m.HealthScore {
			run = m.HealthScore
		}
		run *= failedRunDiscount
	}
	m.HealthScore = BlendHealth(m.HealthScore, run)

	attemptedOrders := make(map[int]bool, attempted)
	for i, s := range m.OrderedSteps() {
		if i >= attempted {
			break
		}
		attemptedOrders[s.Order] = true
	}
	for i, s := range m.Steps {
		switch {
		case failedOrders[s.Order]:
			m.Steps[i].HealthScore = BlendHealth(s.HealthScore, 0)
		case attemptedOrders[s.Order]:
			m.Steps[i].HealthScore = BlendHealth(s.HealthScore, 1)
		}
	}
}
