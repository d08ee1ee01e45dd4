package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

const defaultAvatarMaxBytes = 2 << 20

var (
	// ErrAvatarStorageDisabled is returned when no object store is configured.
	ErrAvatarStorageDisabled = errors.New("avatar storage is not configured")
	// ErrUnsupportedAvatarType rejects non-image uploads.
	ErrUnsupportedAvatarType = errors.New("unsupported avatar content type")
	// ErrAvatarTooLarge rejects uploads above the configured limit.
	ErrAvatarTooLarge = errors.New("avatar exceeds size limit")
	// ErrEmptyAvatar rejects zero-length uploads.
	ErrEmptyAvatar = errors.New("avatar is empty")
)

// AvatarStore persists avatar images in object storage.
type AvatarStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

var avatarExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// AvatarExtension maps an accepted content type to its file extension.
func AvatarExtension(contentType string) (string, bool) {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := avatarExtensions[mediaType]
	return ext, ok
}

// AvatarMaxBytes reports the upload limit enforced by SetAvatar.
func (s *Service) AvatarMaxBytes() int64 {
	return s.avatarMaxBytes
}

// SetAvatar uploads a new avatar image and points the candidate at it. The
// previous object, if any, is removed once the candidate row is updated.
func (s *Service) SetAvatar(ctx context.Context, tenantID, candidateID, contentType string, data []byte) (*Candidate, error) {
	if s.avatars == nil {
		return nil, ErrAvatarStorageDisabled
	}
	ext, ok := AvatarExtension(contentType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAvatarType, contentType)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAvatar
	}
	if int64(len(data)) > s.avatarMaxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrAvatarTooLarge, len(data), s.avatarMaxBytes)
	}

	candidate, err := s.loadCandidate(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/candidates/%s/avatar-%s.%s", tenantID, candidateID, uuid.NewString(), ext)
	url, err := s.avatars.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	now := s.Now()
	if err := s.repo.UpdateAvatar(ctx, tenantID, candidateID, key, url, now); err != nil {
		if delErr := s.avatars.Delete(ctx, key); delErr != nil {
			log.Printf("avatar cleanup failed (key=%s): %v", key, delErr)
		}
		return nil, fmt.Errorf("update avatar: %w", err)
	}

	if previous := candidate.AvatarKey; previous != "" && previous != key {
		if err := s.avatars.Delete(ctx, previous); err != nil {
			log.Printf("previous avatar delete failed (key=%s): %v", previous, err)
		}
	}

	candidate.AvatarKey = key
	candidate.AvatarURL = url
	candidate.UpdatedAt = now
	return candidate, nil
}
