package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wallet-swap/pkg/types"
)

const (
	DefaultStorageFileName = ".wallet-swap-history.json"
)

// Status is the lifecycle state of a recorded swap
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record is one submitted swap
type Record struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Chain       types.Blockchain  `json:"chain"`
	Wallet      string            `json:"wallet"`
	FromMint    string            `json:"from_mint"`
	ToMint      string            `json:"to_mint"`
	FromSymbol  string            `json:"from_symbol,omitempty"`
	ToSymbol    string            `json:"to_symbol,omitempty"`
	FromAmount  string            `json:"from_amount"`
	ToAmount    string            `json:"to_amount"`
	Rate        string            `json:"rate,omitempty"`
	PriceImpact string            `json:"price_impact,omitempty"`
	Fees        map[string]string `json:"fees,omitempty"`
	Signature   string            `json:"signature"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
}

// Storage persists swap records to a JSON file
type Storage struct {
	filePath string
	mu       sync.RWMutex
	records  map[string]*Record
}

// historyFile represents the JSON structure for storage
type historyFile struct {
	Records map[string]*Record `json:"records"`
}

// NewStorage creates a new storage instance
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		// Default to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	storage := &Storage{
		filePath: filePath,
		records:  make(map[string]*Record),
	}

	// A missing file is created on first save
	if err := storage.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return storage, nil
}

// load reads records from the storage file
func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	s.records = file.Records
	if s.records == nil {
		s.records = make(map[string]*Record)
	}

	return nil
}

// saveLocked writes records to the storage file. The caller holds the lock.
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(historyFile{Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Add stores a new record, assigning an id and timestamps when missing
func (s *Storage) Add(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if _, exists := s.records[record.ID]; exists {
		return fmt.Errorf("record '%s' already exists", record.ID)
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = StatusPending
	}

	s.records[record.ID] = record
	if err := s.saveLocked(); err != nil {
		delete(s.records, record.ID)
		return err
	}
	return nil
}

// Get retrieves a record by id
func (s *Storage) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("record '%s' not found", id)
	}

	return record, nil
}

// FindBySignature retrieves a record by transaction signature or hash
func (s *Storage) FindBySignature(signature string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.Signature == signature {
			return record, nil
		}
	}

	return nil, fmt.Errorf("no swap recorded for '%s'", signature)
}

// UpdateStatus sets the status of a record. errMsg is kept for failed swaps.
func (s *Storage) UpdateStatus(id string, status Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[id]
	if !exists {
		return fmt.Errorf("record '%s' not found", id)
	}

	previous := *record
	record.Status = status
	record.Error = errMsg
	record.UpdatedAt = time.Now().UTC()

	if err := s.saveLocked(); err != nil {
		*record = previous
		return err
	}
	return nil
}

// List returns all records, newest first
func (s *Storage) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	sortNewestFirst(records)

	return records
}

// ListByStatus returns records filtered by status, newest first
func (s *Storage) ListByStatus(status Status) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0)
	for _, record := range s.records {
		if record.Status == status {
			records = append(records, record)
		}
	}
	sortNewestFirst(records)

	return records
}

func sortNewestFirst(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

// Count returns the total number of records
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// GetFilePath returns the storage file path
func (s *Storage) GetFilePath() string {
	return s.filePath
}
