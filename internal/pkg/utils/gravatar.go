package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

const defaultAvatarSize = 200

// GravatarURL builds the avatar URL for an account email. Gravatar hashes
// the trimmed, lowercased address with MD5; "d=mp" picks the neutral
// placeholder for addresses without a profile.
func GravatarURL(email string, size int) string {
	if size <= 0 {
		size = defaultAvatarSize
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := md5.Sum([]byte(normalized))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=%d&d=mp", hex.EncodeToString(sum[:]), size)
}
