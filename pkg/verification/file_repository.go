package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// VerificationRepository defines the storage operations the verification core depends on
type VerificationRepository interface {
	IssueCode(ctx context.Context, params IssueCodeParams) (*VerificationCode, error)
	InvalidateOutstanding(ctx context.Context, ownerID uuid.UUID, email string, purpose Purpose) error
	FindActiveCodes(ctx context.Context, email string, purpose Purpose) ([]*VerificationCode, error)
	RecordAttempt(ctx context.Context, codeID uuid.UUID) (int32, error)
	MarkCodeUsed(ctx context.Context, codeID uuid.UUID) error
	CountRecentCodes(ctx context.Context, email string, purpose Purpose, since time.Time) (int64, error)
	GetLatestCode(ctx context.Context, ownerID uuid.UUID, purpose Purpose) (*VerificationCode, error)
	DeleteCodesCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*UserAccount, error)
	MarkUserEmailVerified(ctx context.Context, userID uuid.UUID) error
}

// FileVerificationRepository implements VerificationRepository using file-based storage.
// Intended for local development and tests, not for multi-instance deployments.
type FileVerificationRepository struct {
	dataDir string
	codes   map[uuid.UUID]*VerificationCode // Key: code ID
	users   map[uuid.UUID]*UserAccount      // Key: user ID
	mutex   sync.RWMutex
}

// verificationData represents the structure of data stored in the JSON file
type verificationData struct {
	Codes []*VerificationCode `json:"codes"`
	Users []*UserAccount      `json:"users"`
}

// NewFileVerificationRepository creates a new file-based verification repository
func NewFileVerificationRepository(dataDir string) (*FileVerificationRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileVerificationRepository{
		dataDir: dataDir,
		codes:   make(map[uuid.UUID]*VerificationCode),
		users:   make(map[uuid.UUID]*UserAccount),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// IssueCode inserts a new verification code with used=false and attempts=0
func (r *FileVerificationRepository) IssueCode(ctx context.Context, params IssueCodeParams) (*VerificationCode, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	vc := &VerificationCode{
		ID:        uuid.New(),
		OwnerID:   params.OwnerID,
		Email:     params.Email,
		Code:      params.Code,
		Purpose:   params.Purpose,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: params.ExpiresAt,
		Used:      false,
		Attempts:  0,
	}
	if params.IPAddress != "" {
		ip := params.IPAddress
		vc.IPAddress = &ip
	}
	if params.UserAgent != "" {
		ua := params.UserAgent
		vc.UserAgent = &ua
	}

	r.codes[vc.ID] = vc

	if err := r.save(); err != nil {
		delete(r.codes, vc.ID)
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	vcCopy := *vc
	return &vcCopy, nil
}

// InvalidateOutstanding marks all unused codes for (owner, email, purpose) as used
func (r *FileVerificationRepository) InvalidateOutstanding(ctx context.Context, ownerID uuid.UUID, email string, purpose Purpose) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, vc := range r.codes {
		if vc.OwnerID == ownerID && vc.Email == email && vc.Purpose == purpose && !vc.Used {
			vc.Used = true
		}
	}

	return r.save()
}

// FindActiveCodes retrieves all unused codes for (email, purpose), newest first
func (r *FileVerificationRepository) FindActiveCodes(ctx context.Context, email string, purpose Purpose) ([]*VerificationCode, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var codes []*VerificationCode
	for _, vc := range r.codes {
		if vc.Email == email && vc.Purpose == purpose && !vc.Used {
			vcCopy := *vc
			codes = append(codes, &vcCopy)
		}
	}
	if len(codes) == 0 {
		return nil, ErrCodeNotFound
	}

	sort.Slice(codes, func(i, j int) bool {
		return codes[i].CreatedAt.After(codes[j].CreatedAt)
	})

	return codes, nil
}

// RecordAttempt increments the attempt counter and returns the new count
func (r *FileVerificationRepository) RecordAttempt(ctx context.Context, codeID uuid.UUID) (int32, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	vc, exists := r.codes[codeID]
	if !exists {
		return 0, ErrCodeNotFound
	}

	vc.Attempts++

	if err := r.save(); err != nil {
		return 0, err
	}

	return vc.Attempts, nil
}

// MarkCodeUsed flips the used latch, idempotent no-op if already used
func (r *FileVerificationRepository) MarkCodeUsed(ctx context.Context, codeID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	vc, exists := r.codes[codeID]
	if !exists {
		return ErrCodeNotFound
	}

	vc.Used = true

	return r.save()
}

// CountRecentCodes counts codes issued to (email, purpose) since the given time
func (r *FileVerificationRepository) CountRecentCodes(ctx context.Context, email string, purpose Purpose, since time.Time) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	count := int64(0)
	for _, vc := range r.codes {
		if vc.Email == email && vc.Purpose == purpose && vc.CreatedAt.After(since) {
			count++
		}
	}

	return count, nil
}

// GetLatestCode retrieves the most recently issued code for (owner, purpose)
func (r *FileVerificationRepository) GetLatestCode(ctx context.Context, ownerID uuid.UUID, purpose Purpose) (*VerificationCode, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *VerificationCode
	for _, vc := range r.codes {
		if vc.OwnerID == ownerID && vc.Purpose == purpose {
			if latest == nil || vc.CreatedAt.After(latest.CreatedAt) {
				latest = vc
			}
		}
	}
	if latest == nil {
		return nil, ErrCodeNotFound
	}

	latestCopy := *latest
	return &latestCopy, nil
}

// DeleteCodesCreatedBefore deletes code rows older than the cutoff
func (r *FileVerificationRepository) DeleteCodesCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	deleted := int64(0)
	for id, vc := range r.codes {
		if vc.CreatedAt.Before(cutoff) {
			delete(r.codes, id)
			deleted++
		}
	}

	if err := r.save(); err != nil {
		return 0, err
	}

	return deleted, nil
}

// GetUserByID retrieves a user record by id
func (r *FileVerificationRepository) GetUserByID(ctx context.Context, userID uuid.UUID) (*UserAccount, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	user, exists := r.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}

	userCopy := *user
	return &userCopy, nil
}

// GetUserByEmail retrieves a user record by email
func (r *FileVerificationRepository) GetUserByEmail(ctx context.Context, email string) (*UserAccount, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			userCopy := *user
			return &userCopy, nil
		}
	}

	return nil, ErrUserNotFound
}

// MarkUserEmailVerified flips the user's verified flag to true
func (r *FileVerificationRepository) MarkUserEmailVerified(ctx context.Context, userID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, exists := r.users[userID]
	if !exists {
		// Create user status if it doesn't exist
		user = &UserAccount{
			ID:            userID,
			EmailVerified: true,
		}
		r.users[userID] = user
	} else {
		user.EmailVerified = true
	}

	now := time.Now().UTC()
	user.EmailVerifiedAt = &now

	return r.save()
}

// SaveUser inserts or replaces a user record. Used to seed local development
// data and tests; not part of the VerificationRepository interface.
func (r *FileVerificationRepository) SaveUser(ctx context.Context, user *UserAccount) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	userCopy := *user
	r.users[user.ID] = &userCopy

	return r.save()
}

// load reads verification data from file
func (r *FileVerificationRepository) load() error {
	filePath := filepath.Join(r.dataDir, "verification_codes.json")

	// If file doesn't exist, start with empty maps
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var vData verificationData
	if err := json.Unmarshal(data, &vData); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.codes = make(map[uuid.UUID]*VerificationCode)
	for _, vc := range vData.Codes {
		r.codes[vc.ID] = vc
	}

	r.users = make(map[uuid.UUID]*UserAccount)
	for _, user := range vData.Users {
		r.users[user.ID] = user
	}

	return nil
}

// save writes verification data to file atomically
func (r *FileVerificationRepository) save() error {
	codes := make([]*VerificationCode, 0, len(r.codes))
	for _, vc := range r.codes {
		codes = append(codes, vc)
	}

	users := make([]*UserAccount, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}

	data := verificationData{
		Codes: codes,
		Users: users,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(r.dataDir, "verification_codes.json.tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	filePath := filepath.Join(r.dataDir, "verification_codes.json")
	if err := os.Rename(tempFile, filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
