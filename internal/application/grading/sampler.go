package grading

import "math/rand/v2"

// shuffleFunc 与 rand.Shuffle 签名一致，便于测试注入
type shuffleFunc func(n int, swap func(i, j int))

// sampleQuestionIDs 不放回地随机抽取 n 个题目
func sampleQuestionIDs(ids []string, n int, shuffle shuffleFunc) []string {
	pool := make([]string, len(ids))
	copy(pool, ids)
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}
