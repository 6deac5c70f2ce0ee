package model

import (
	"strconv"
	"time"
)

// JSONTime 以Unix秒序列化的时间，零值输出0
type JSONTime struct {
	time.Time
}

// MarshalJSON 实现JSON序列化
func (jt JSONTime) MarshalJSON() ([]byte, error) {
	if jt.Time.IsZero() {
		return []byte("0"), nil
	}
	return []byte(strconv.FormatInt(jt.Time.Unix(), 10)), nil
}

// UnmarshalJSON 实现JSON反序列化
func (jt *JSONTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == "0" {
		jt.Time = time.Time{}
		return nil
	}
	ts, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	jt.Time = time.Unix(ts, 0)
	return nil
}

// ProviderLog 单次上游尝试的记录
// Key 在写入前已脱敏，消息在写入前已清洗
type ProviderLog struct {
	ID         int64    `json:"id"`
	Time       JSONTime `json:"time"`
	Provider   string   `json:"provider"`
	Endpoint   string   `json:"endpoint"`
	KeyMask    string   `json:"key_mask"`
	StatusCode int      `json:"status_code"`
	Outcome    string   `json:"outcome"`
	Attempt    int      `json:"attempt"`
	Duration   float64  `json:"duration"` // 秒
	Message    string   `json:"message,omitempty"`
}

// ProviderLogFilter 上游日志查询条件，零值字段不参与过滤
type ProviderLogFilter struct {
	Provider string
	Outcome  string
}
