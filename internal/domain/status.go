package domain

// StepStatus — итог выполнения шага.
type StepStatus string

const (
	// StepStatusPassed — все объявленные проверки прошли.
	StepStatusPassed StepStatus = "PASSED"

	// StepStatusFailed — шаг упал (ошибка шаблона, транспорта или проверки).
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusSkipped — шаг не выполнялся: сценарий был прерван
	// или condition шага не выполнено.
	StepStatusSkipped StepStatus = "SKIPPED"
)

// ScenarioState — состояние выполнения сценария.
//
// Жизненный цикл:
//
//	RUNNING → COMPLETED
//	        ↘ ABORTED → COMPLETED
type ScenarioState string

const (
	// ScenarioStateRunning — шаги выполняются.
	ScenarioStateRunning ScenarioState = "RUNNING"

	// ScenarioStateAborted — шаг упал при continue_on_failure=false,
	// оставшиеся шаги помечаются как SKIPPED.
	ScenarioStateAborted ScenarioState = "ABORTED"

	// ScenarioStateCompleted — выполнение завершено.
	ScenarioStateCompleted ScenarioState = "COMPLETED"
)

// IsTerminal возвращает true для финального состояния.
func (s ScenarioState) IsTerminal() bool {
	return s == ScenarioStateCompleted
}

// ErrorKind — категория ошибки шага или файла сценария.
type ErrorKind string

const (
	ErrorKindParse              ErrorKind = "ParseError"
	ErrorKindUnresolvedVariable ErrorKind = "UnresolvedVariable"
	ErrorKindRequest            ErrorKind = "RequestError"
	ErrorKindAssertion          ErrorKind = "AssertionFailure"
	ErrorKindSSETimeout         ErrorKind = "SSETimeout"
	ErrorKindSkipped            ErrorKind = "SkippedDueToPriorFailure"
)

// AssertionKind — вид проверки ответа.
type AssertionKind string

const (
	AssertStatus      AssertionKind = "status"
	AssertJSON        AssertionKind = "json"
	AssertJSONLengths AssertionKind = "json_lengths"
	AssertHeaders     AssertionKind = "headers"
	AssertContains    AssertionKind = "contains"
	AssertJSONEq      AssertionKind = "json_eq"
	AssertSSE         AssertionKind = "sse"
	AssertSave        AssertionKind = "save"
)
