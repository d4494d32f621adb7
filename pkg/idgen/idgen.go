/*
 * @Description: ID 生成和解码服务
 * @Author: 安知鱼
 * @Date: 2025-06-17 20:38:15
 * @LastEditTime: 2025-11-02 11:05:41
 * @LastEditors: 安知鱼
 */
package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sqids/sqids-go"
)

var (
	// sqidsEncoder 是用于生成和解码短 ID 的 Sqids 编码器实例。
	sqidsEncoder *sqids.Sqids
	encoderMu    sync.RWMutex
	sequence     atomic.Uint64
)

// DefaultAlphabet 是默认的字母表
const DefaultAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// EntityType 定义了不同实体在生成公共 ID 时的类型标识。
const (
	EntityTypeDocument uint64 = 1 // 内容文档的类型标识
	EntityTypeFile     uint64 = 2 // 存储对象文件名的类型标识
)

// GenerateRandomSeed 生成一个随机的 16 字节种子（返回 32 字符的十六进制字符串）
func GenerateRandomSeed() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("生成随机种子失败: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// shuffleAlphabet 使用种子打乱字母表
func shuffleAlphabet(seed string) string {
	var seedInt int64
	for i, c := range seed {
		seedInt += int64(c) * int64(i+1)
	}

	r := mrand.New(mrand.NewSource(seedInt))

	alphabet := []rune(DefaultAlphabet)
	r.Shuffle(len(alphabet), func(i, j int) {
		alphabet[i], alphabet[j] = alphabet[j], alphabet[i]
	})

	return string(alphabet)
}

// InitSqidsEncoder 初始化 Sqids 编码器（使用默认字母表）
func InitSqidsEncoder() error {
	return InitSqidsEncoderWithSeed("")
}

// InitSqidsEncoderWithSeed 使用种子初始化 Sqids 编码器。
// 如果 seed 为空字符串，则使用默认字母表
func InitSqidsEncoderWithSeed(seed string) error {
	alphabet := DefaultAlphabet
	if seed != "" {
		alphabet = shuffleAlphabet(seed)
	}

	s, err := sqids.New(
		sqids.Options{
			MinLength: 8,
			Alphabet:  alphabet,
		},
	)
	if err != nil {
		return fmt.Errorf("初始化 Sqids 编码器失败: %w", err)
	}
	encoderMu.Lock()
	sqidsEncoder = s
	encoderMu.Unlock()
	return nil
}

func encoder() (*sqids.Sqids, error) {
	encoderMu.RLock()
	s := sqidsEncoder
	encoderMu.RUnlock()
	if s != nil {
		return s, nil
	}
	if err := InitSqidsEncoder(); err != nil {
		return nil, err
	}
	encoderMu.RLock()
	defer encoderMu.RUnlock()
	return sqidsEncoder, nil
}

// generate 将 [毫秒时间戳, 进程内序号, 随机数, 实体类型] 编码为短 ID，保证进程内唯一且跨进程极难碰撞
func generate(entityType uint64) (string, error) {
	s, err := encoder()
	if err != nil {
		return "", err
	}

	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("读取随机数失败: %w", err)
	}

	numbers := []uint64{
		uint64(time.Now().UnixMilli()),
		sequence.Add(1),
		uint64(binary.BigEndian.Uint32(buf[:])),
		entityType,
	}
	id, err := s.Encode(numbers)
	if err != nil {
		return "", fmt.Errorf("编码公共ID失败: %w", err)
	}
	return id, nil
}

// NewFileID 生成存储对象的文件名（不含扩展名）
func NewFileID() (string, error) {
	return generate(EntityTypeFile)
}

// NewDocumentID 生成内容文档的主键
func NewDocumentID() (string, error) {
	return generate(EntityTypeDocument)
}

// DecodeEntityType 解码公共 ID 并返回其实体类型
func DecodeEntityType(publicID string) (uint64, error) {
	s, err := encoder()
	if err != nil {
		return 0, err
	}

	numbers := s.Decode(publicID)
	if len(numbers) != 4 {
		return 0, fmt.Errorf("无法从公共ID解码出预期数量的数字(期望4个，得到%d个)", len(numbers))
	}
	return numbers[3], nil
}
