package utils

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
)

// BytesMD5 计算字节数组MD5
func BytesMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

// ContentSeed 由内容哈希得到稳定的随机种子，保证非零
func ContentSeed(data []byte) int64 {
	hash := md5.Sum(data)
	seed := int64(binary.LittleEndian.Uint64(hash[:8]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
