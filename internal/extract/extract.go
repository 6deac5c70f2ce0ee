// Package extract 从LLM自由文本响应中定位、修复、解码JSON
//
// 处理顺序：去掉思考块 → 优先取代码围栏 → 从第一个 { / [ 到最后一个 } / ] →
// 严格解析 → 失败则修复后再解析 → 解码到目标结构 → 补全默认值。
// 数组类结果在整体解析失败时进入抢救模式，逐个扫描平衡的对象。
package extract

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"sort"

	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/util"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// JSON 返回响应中紧凑格式的JSON文本
// 完全没有 { 或 [ 时返回 MalformedResponse
func JSON(raw string) ([]byte, error) {
	span, tail, ok := locate(raw)
	if !ok {
		return nil, apperrors.MalformedResponse("no JSON object or array in response", nil)
	}

	if util.ValidJSON([]byte(span)) {
		return compact(span)
	}
	for _, candidate := range []string{repair(tail), repair(span)} {
		if candidate != "" && util.ValidJSON([]byte(candidate)) {
			return compact(candidate)
		}
	}
	return nil, apperrors.MalformedResponse("response JSON could not be repaired", nil)
}

// compact 去掉无意义空白；sonic 没有等价的 Compact
func compact(s string) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return nil, apperrors.MalformedResponse("response JSON could not be compacted", err)
	}
	return buf.Bytes(), nil
}

// Decode 解析响应为 T 并补全默认值
// 多余字段被忽略，缺失字段取默认值
// 整体结果与 T 不匹配时（例如说明文字里的 [1] 被当成边界），逐个尝试平衡的对象片段
func Decode[T any](raw string) (T, error) {
	var out T
	data, err := JSON(raw)
	if err == nil {
		if err = util.UnmarshalJSON(data, &out); err == nil {
			FillDefaults(&out)
			return out, nil
		}
		err = apperrors.MalformedResponse("response JSON does not match expected shape", err)
	}
	if v, ok := firstObject[T](raw); ok {
		FillDefaults(&v)
		return v, nil
	}
	var zero T
	return zero, err
}

// firstObject 返回第一个能解码为 T 的平衡对象片段，截断的最后一个片段先补全
// 只尝试最外层对象：失败的片段整体跳过，不深入其嵌套对象
func firstObject[T any](raw string) (T, bool) {
	text := stripNoise(raw)
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := scanBalanced(text, i)
		frag := text[i:]
		if end > 0 {
			frag = text[i:end]
		}
		for _, candidate := range []string{frag, repair(frag)} {
			var v T
			if candidate != "" && util.ValidJSON([]byte(candidate)) && util.UnmarshalJSON([]byte(candidate), &v) == nil {
				return v, true
			}
		}
		if end < 0 {
			break
		}
		i = end - 1
	}
	var zero T
	return zero, false
}

// Records 提取记录数组：顶层数组，或顶层对象的 field 字段（缺失时取第一个数组字段）
// 未通过 `validate` 标签校验的记录被丢弃；整体解析失败或没有有效记录时进入抢救模式
// 最终一条都没有则返回 IncompleteResult
func Records[E any](raw, field string) ([]E, error) {
	var records []E
	if data, err := JSON(raw); err == nil {
		records = decodeItems[E](arrayItems(data, field))
	}
	if len(records) == 0 {
		records = salvage[E](raw)
	}
	if len(records) == 0 {
		return nil, apperrors.IncompleteResult(fieldLabel(field), 0, 1)
	}
	return records, nil
}

// Valid 按 `validate` 标签校验单条记录；非结构体视为有效
func Valid(v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}
	var invalid *validator.InvalidValidationError
	return stderrors.As(err, &invalid)
}

func arrayItems(data []byte, field string) []json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	var items []json.RawMessage
	if data[0] == '[' {
		if err := util.UnmarshalJSON(data, &items); err != nil {
			return nil
		}
		return items
	}

	var obj map[string]json.RawMessage
	if err := util.UnmarshalJSON(data, &obj); err != nil {
		return nil
	}
	if v, ok := obj[field]; ok {
		if err := util.UnmarshalJSON(v, &items); err == nil {
			return items
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := bytes.TrimSpace(obj[k])
		if len(v) > 0 && v[0] == '[' {
			if err := util.UnmarshalJSON(v, &items); err == nil {
				return items
			}
		}
	}
	return nil
}

func decodeItems[E any](items []json.RawMessage) []E {
	out := make([]E, 0, len(items))
	for _, item := range items {
		if rec, ok := decodeRecord[E](item); ok {
			out = append(out, rec)
		}
	}
	return out
}

func decodeRecord[E any](data []byte) (E, bool) {
	var rec E
	if err := util.UnmarshalJSON(data, &rec); err != nil {
		return rec, false
	}
	FillDefaults(&rec)
	return rec, Valid(&rec)
}

// salvage 抢救模式：扫描所有平衡的对象片段，逐个尝试解码和校验
// 一个片段成功后跳过其内部；失败则继续深入寻找嵌套对象
func salvage[E any](raw string) []E {
	text := stripNoise(raw)
	var out []E

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := scanBalanced(text, i)
		if end < 0 {
			// 最后一个被截断的对象：尝试补全
			if rec, ok := decodeFragment[E](repair(text[i:])); ok {
				out = append(out, rec)
			}
			break
		}
		if rec, ok := decodeFragment[E](text[i:end]); ok {
			out = append(out, rec)
			i = end - 1
		}
	}
	return out
}

func decodeFragment[E any](frag string) (E, bool) {
	if rec, ok := decodeRecord[E]([]byte(frag)); ok {
		return rec, true
	}
	return decodeRecord[E]([]byte(repair(frag)))
}

func fieldLabel(field string) string {
	if field == "" {
		return "records"
	}
	return field
}
