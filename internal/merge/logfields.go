package merge

import (
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
)

var (
	logEventGateFailed       = logfields.Event("merge_gate_failed")
	logEventSafetyFallback   = logfields.Event("merge_safety_fallback")
	logEventEvaluationFailed = logfields.Event("pull_request_evaluation_failed")
	logEventMerged           = logfields.Event("pull_request_merged")
)

func logFieldReason(reason string) zap.Field {
	return zap.String("reason", reason)
}

func logFieldGate(gate Gate) zap.Field {
	return zap.String("merge_gate", gate.String())
}
