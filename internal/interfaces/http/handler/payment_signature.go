package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	errSecretMissing    = errors.New("webhook secret not configured")
	errSignatureMissing = errors.New("signature header missing")
	errSignatureFormat  = errors.New("signature header malformed")
	errSignatureExpired = errors.New("signature timestamp outside tolerance")
	errSignatureInvalid = errors.New("no matching signature")
)

// verifySignature 校验 `t=<unix>,v1=<hex>[,v1=<hex>]` 形式的签名头。
// 签名内容为 "<t>.<body>" 的 HMAC-SHA256。
func verifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return errSecretMissing
	}
	if header == "" {
		return errSignatureMissing
	}

	var (
		ts         int64
		haveTS     bool
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			v, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return errSignatureFormat
			}
			ts, haveTS = v, true
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if !haveTS || len(signatures) == 0 {
		return errSignatureFormat
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return errSignatureExpired
		}
	}

	expected := computeSignature(payload, ts, secret)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return errSignatureInvalid
}

func computeSignature(payload []byte, ts int64, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
