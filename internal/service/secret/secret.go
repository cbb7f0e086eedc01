// Package secret 提供 API Key 的静态加密
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize 对称密钥长度
const KeySize = chacha20poly1305.KeySize

// blobVersion 密文版本号，同时作为 AAD 参与认证
const blobVersion byte = 0x01

// Cipher 基于 XChaCha20-Poly1305 的对称加密器
// 密钥在首次使用时生成并写入密钥文件，之后复用
type Cipher struct {
	keyFile string

	mu  sync.Mutex
	key []byte
}

// NewCipher 创建加密器
func NewCipher(keyFile string) *Cipher {
	return &Cipher{keyFile: keyFile}
}

// NewCipherWithKey 使用给定密钥创建加密器（测试用）
func NewCipherWithKey(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return &Cipher{key: append([]byte(nil), key...)}, nil
}

// Encrypt 加密明文，返回 base64 字符串
func (c *Cipher) Encrypt(plain string) (string, error) {
	key, err := c.loadKey()
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 1+len(nonce), 1+len(nonce)+len(plain)+aead.Overhead())
	out[0] = blobVersion
	copy(out[1:], nonce)
	out = aead.Seal(out, nonce, []byte(plain), []byte{blobVersion})

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt 解密 Encrypt 的输出
func (c *Cipher) Decrypt(cipherText string) (string, error) {
	key, err := c.loadKey()
	if err != nil {
		return "", err
	}

	blob, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(cipherText))
	if err != nil {
		return "", fmt.Errorf("failed to decode cipher text: %w", err)
	}

	minLen := 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(blob) < minLen {
		return "", fmt.Errorf("cipher text is %d bytes, minimum is %d", len(blob), minLen)
	}
	if blob[0] != blobVersion {
		return "", fmt.Errorf("unsupported cipher text version %d", blob[0])
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plain, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], blob[:1])
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}

// loadKey 读取密钥，不存在则生成
func (c *Cipher) loadKey() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key != nil {
		return c.key, nil
	}

	data, err := os.ReadFile(c.keyFile)
	switch {
	case err == nil:
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode key file: %w", err)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("key file %s holds %d bytes, want %d", c.keyFile, len(key), KeySize)
		}
		c.key = key
		return c.key, nil

	case errors.Is(err, os.ErrNotExist):
		key := make([]byte, KeySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(c.keyFile), 0700); err != nil {
			return nil, fmt.Errorf("failed to create key directory: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(key)
		if err := os.WriteFile(c.keyFile, []byte(encoded), 0600); err != nil {
			return nil, fmt.Errorf("failed to write key file: %w", err)
		}
		c.key = key
		return c.key, nil

	default:
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
}
