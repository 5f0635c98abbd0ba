package mail

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoAddress 表示无法从输入中提取出收件地址
var ErrNoAddress = errors.New("no recipient address found")

var (
	angleBracketRe = regexp.MustCompile(`<([^<>]+)>`)
	addressTokenRe = regexp.MustCompile(`[A-Za-z0-9._-]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)+`)
)

// ResolveAddress 从原始 To 字段中提取并归一化收件地址
//
// 按优先级依次尝试：
//  1. 尖括号包裹的地址（"Jane Doe <foo@bar.com>"）
//  2. 受限字符集的 local-part@dotted-domain 形式
//  3. 首个包含 @ 的空白分隔词（宽松兜底）
//
// 提取结果统一去除首尾空白并转小写；全部失败时返回 ErrNoAddress。
// 尖括号优先于宽松匹配，避免把引号或尾随标点一并捕获。
func ResolveAddress(raw string) (string, error) {
	if m := angleBracketRe.FindStringSubmatch(raw); m != nil {
		return normalize(m[1])
	}

	if m := addressTokenRe.FindString(raw); m != "" {
		return normalize(m)
	}

	for _, token := range strings.Fields(raw) {
		if strings.Contains(token, "@") {
			return normalize(token)
		}
	}

	return "", ErrNoAddress
}

func normalize(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" || !strings.Contains(addr, "@") {
		return "", ErrNoAddress
	}
	return addr, nil
}
