// Пакет cache — двухуровневый кэш изображений: in-memory LRU + дисковый кэш
// с персистентным индексом. Оба уровня адресуются одним ключом, полученным
// через DeriveKey, что гарантирует согласованность между ними.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key — ключ кэша, детерминированно полученный из URL изображения.
type Key string

// DeriveKey возвращает ключ кэша для URL: SHA-256 в hex (64 символа).
// Чистая функция: один и тот же URL всегда даёт один и тот же ключ.
func DeriveKey(url string) Key {
	sum := sha256.Sum256([]byte(url))
	return Key(hex.EncodeToString(sum[:]))
}

// String возвращает строковое представление ключа.
func (k Key) String() string {
	return string(k)
}
