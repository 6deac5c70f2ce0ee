package fetch

import (
	"abroadPlan/internal/util"
)

// Kind 单次尝试的结果类别
type Kind int

const (
	KindOK          Kind = iota // 2xx
	KindRateLimited             // 429：冷却当前Key并换下一把
	KindRetryable               // 502/503/超时/网络中断：退避后同Key重试
	KindFatal                   // 其余状态码或调用方取消：立即失败
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRateLimited:
		return "rate_limited"
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome 单次尝试的分类结果
// Status 为HTTP状态码；没拿到响应时为分类器给出的等效状态码
type Outcome struct {
	Kind   Kind
	Status int
	Err    error
}

// classify 把状态码或传输错误归入四类结果之一
func classify(status int, err error) Outcome {
	if err != nil {
		code, level := util.ClassifyError(err)
		if level == util.ErrorLevelTransient {
			return Outcome{Kind: KindRetryable, Status: code, Err: err}
		}
		return Outcome{Kind: KindFatal, Status: code, Err: err}
	}

	switch util.ClassifyHTTPStatus(status) {
	case util.ErrorLevelNone:
		return Outcome{Kind: KindOK, Status: status}
	case util.ErrorLevelRateLimited:
		return Outcome{Kind: KindRateLimited, Status: status}
	case util.ErrorLevelTransient:
		return Outcome{Kind: KindRetryable, Status: status}
	default:
		return Outcome{Kind: KindFatal, Status: status}
	}
}
