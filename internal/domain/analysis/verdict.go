package analysis

// DecisionThreshold separates the two classes on the raw sigmoid output.
// The model emits higher scores for the "not infringing" class; exactly 0.5
// lands on the infractor side.
const DecisionThreshold = 0.5

// Interpret maps a raw classifier score onto a Verdict. The displayed
// percentage tracks the chosen label: the infractor branch inverts the score,
// so both branches report how sure the model is about its own call.
func Interpret(score float64) Verdict {
	if score > DecisionThreshold {
		return Verdict{Label: LabelNoInfractor, ConfidencePct: score * 100, RawScore: score}
	}
	return Verdict{Label: LabelInfractor, ConfidencePct: (1 - score) * 100, RawScore: score}
}
