// Package crm resolves an account's WorkDrive root folder id.
package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"filing-backend/internal/shared/storage/db"
	"filing-backend/internal/zoho"
)

// DefaultBaseURL is the US data-center CRM API host.
const DefaultBaseURL = "https://www.zohoapis.com"

// DefaultFolderField is the Accounts module field holding the root folder.
const DefaultFolderField = "WorkDrive_Folder_ID"

// RootFolderLookup returns the root folder id for an account, or "" when the
// account has none.
type RootFolderLookup interface {
	RootFolderID(ctx context.Context, accountID string) (string, error)
}

// Client reads the root folder from a custom field on the CRM Accounts record.
type Client struct {
	api   *zoho.API
	field string
}

// New builds a CRM lookup over api reading field.
func New(api *zoho.API, field string) *Client {
	field = strings.TrimSpace(field)
	if field == "" {
		field = DefaultFolderField
	}
	return &Client{api: api, field: field}
}

// RootFolderID implements RootFolderLookup.
func (c *Client) RootFolderID(ctx context.Context, accountID string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", nil
	}

	var resp struct {
		Data []map[string]any `json:"data"`
	}
	query := url.Values{}
	query.Set("fields", c.field)
	path := "crm/v2/Accounts/" + url.PathEscape(accountID)
	if err := c.api.DoJSON(ctx, "crm.account", http.MethodGet, path, query, "", nil, &resp); err != nil {
		var apiErr *zoho.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return folderIDFromValue(resp.Data[0][c.field]), nil
}

// folderIDFromValue accepts a bare id, a WorkDrive folder URL, or a lookup
// object carrying an id.
func folderIDFromValue(v any) string {
	switch val := v.(type) {
	case string:
		raw := strings.TrimSpace(val)
		if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
			if u, err := url.Parse(raw); err == nil {
				parts := strings.Split(strings.Trim(u.Path, "/"), "/")
				return parts[len(parts)-1]
			}
		}
		return raw
	case map[string]any:
		if id, ok := val["id"].(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

// DBLookup reads root folders from the account_folders table.
type DBLookup struct {
	db *sql.DB
}

// NewDBLookup builds a DBLookup.
func NewDBLookup(database *sql.DB) *DBLookup {
	return &DBLookup{db: database}
}

// RootFolderID implements RootFolderLookup.
func (l *DBLookup) RootFolderID(ctx context.Context, accountID string) (string, error) {
	var id string
	err := l.db.QueryRowContext(ctx, `SELECT root_folder_id FROM account_folders WHERE account_id = $1`, accountID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("account folder lookup: %w", err)
	}
	return strings.TrimSpace(id), nil
}

const upsertRootFolder = `
INSERT INTO account_folders (account_id, root_folder_id, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (account_id) DO UPDATE SET root_folder_id = EXCLUDED.root_folder_id, updated_at = now()`

// SetRootFolder upserts the root folder for accountID.
func (l *DBLookup) SetRootFolder(ctx context.Context, accountID, folderID string) error {
	if _, err := l.db.ExecContext(ctx, upsertRootFolder, accountID, folderID); err != nil {
		return fmt.Errorf("set account folder: %w", err)
	}
	return nil
}

// ImportRootFolders upserts every mapping in one transaction; either all rows
// land or none do. Values may be bare ids or WorkDrive folder URLs.
func (l *DBLookup) ImportRootFolders(ctx context.Context, roots map[string]string) (int, error) {
	accounts := make([]string, 0, len(roots))
	for accountID, folder := range roots {
		if strings.TrimSpace(accountID) == "" || folderIDFromValue(folder) == "" {
			return 0, fmt.Errorf("import account folders: empty account or folder for %q", accountID)
		}
		accounts = append(accounts, accountID)
	}
	sort.Strings(accounts)

	err := db.InTx(ctx, l.db, nil, func(tx *sql.Tx) error {
		for _, accountID := range accounts {
			folderID := folderIDFromValue(roots[accountID])
			if _, err := tx.ExecContext(ctx, upsertRootFolder, strings.TrimSpace(accountID), folderID); err != nil {
				return fmt.Errorf("import account folder %s: %w", accountID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(accounts), nil
}

// LoadRootFolders reads a YAML mapping of account id to root folder.
func LoadRootFolders(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read account folders: %w", err)
	}
	var roots map[string]string
	if err := yaml.Unmarshal(raw, &roots); err != nil {
		return nil, fmt.Errorf("parse account folders: %w", err)
	}
	return roots, nil
}

// MemoryLookup is an in-memory RootFolderLookup for dev and tests.
type MemoryLookup struct {
	mu    sync.RWMutex
	roots map[string]string
}

// NewMemoryLookup builds a MemoryLookup seeded from roots.
func NewMemoryLookup(roots map[string]string) *MemoryLookup {
	m := &MemoryLookup{roots: make(map[string]string, len(roots))}
	for k, v := range roots {
		m.roots[k] = v
	}
	return m
}

// RootFolderID implements RootFolderLookup.
func (m *MemoryLookup) RootFolderID(ctx context.Context, accountID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roots[accountID], nil
}

// SetRootFolder records folderID for accountID.
func (m *MemoryLookup) SetRootFolder(ctx context.Context, accountID, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots[accountID] = folderID
	return nil
}

var (
	_ RootFolderLookup = (*Client)(nil)
	_ RootFolderLookup = (*DBLookup)(nil)
	_ RootFolderLookup = (*MemoryLookup)(nil)
)
