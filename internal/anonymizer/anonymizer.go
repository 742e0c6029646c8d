// Package anonymizer 提供投票人身份匿名化所需的哈希原语。
//
// Fingerprint 是稳定的身份哈希,只用于重复投票检测;
// Token 包含时间和盐,每次调用都不同,只作为投票回执。
// 两者不可互换。
package anonymizer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// UnknownAttribute 属性缺失时参与哈希的固定占位值
const UnknownAttribute = "unknown"

// Fingerprint 计算 (员工, 活动) 的确定性指纹
func Fingerprint(employeeID, campaignID string) string {
	sum := sha256.Sum256([]byte("fp:" + employeeID + ":" + campaignID))
	return hex.EncodeToString(sum[:])
}

// Token 计算投票回执令牌,以盐为 HMAC 密钥并混入当前时间
func Token(employeeID, campaignID, salt string, now time.Time) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte("tk:" + employeeID + ":" + campaignID + ":"))
	h.Write([]byte(strconv.FormatInt(now.UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// HashAttribute 对 IP、User-Agent 等可选属性做单向哈希
func HashAttribute(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = UnknownAttribute
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
