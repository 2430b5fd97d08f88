package documents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	keyUser      = "user"
	keyAccountID = "account_id"
	keyFile      = "file"
	keyZohoData  = "zoho_data"
)

// UserContext identifies who uploaded the document.
type UserContext struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// FileRef points at the stored upload.
type FileRef struct {
	Key         string `json:"key,omitempty"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// StorageLinkage records where the document was filed in WorkDrive.
type StorageLinkage struct {
	ResourceID string    `json:"resource_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Permalink  string    `json:"permalink,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	FolderPath string    `json:"folder_path,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Metadata is the document's JSON bag. Known keys are typed; anything else
// is kept verbatim in Extra and written back unchanged.
type Metadata struct {
	User      *UserContext
	AccountID string
	File      *FileRef
	ZohoData  *StorageLinkage
	Extra     map[string]json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	set := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("metadata %s: %w", key, err)
		}
		out[key] = raw
		return nil
	}
	if m.User != nil {
		if err := set(keyUser, m.User); err != nil {
			return nil, err
		}
	}
	if m.AccountID != "" {
		if err := set(keyAccountID, m.AccountID); err != nil {
			return nil, err
		}
	}
	if m.File != nil {
		if err := set(keyFile, m.File); err != nil {
			return nil, err
		}
	}
	if m.ZohoData != nil {
		if err := set(keyZohoData, m.ZohoData); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	*m = Metadata{}

	if v, ok := take(raw, keyUser); ok {
		var u UserContext
		if err := json.Unmarshal(v, &u); err != nil {
			return fmt.Errorf("metadata user: %w", err)
		}
		m.User = &u
	}
	if v, ok := take(raw, keyAccountID); ok {
		id, err := decodeID(v)
		if err != nil {
			return fmt.Errorf("metadata account_id: %w", err)
		}
		m.AccountID = id
	}
	if v, ok := take(raw, keyFile); ok {
		var f FileRef
		if err := json.Unmarshal(v, &f); err != nil {
			return fmt.Errorf("metadata file: %w", err)
		}
		m.File = &f
	}
	if v, ok := take(raw, keyZohoData); ok {
		var z StorageLinkage
		if err := json.Unmarshal(v, &z); err != nil {
			return fmt.Errorf("metadata zoho_data: %w", err)
		}
		m.ZohoData = &z
	}
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// WithLinkage returns a copy of m carrying link as zoho_data.
func (m Metadata) WithLinkage(link StorageLinkage) Metadata {
	out := *m.Clone()
	out.ZohoData = &link
	return out
}

// Clone returns a deep copy of m.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.User != nil {
		u := *m.User
		out.User = &u
	}
	if m.File != nil {
		f := *m.File
		out.File = &f
	}
	if m.ZohoData != nil {
		z := *m.ZohoData
		out.ZohoData = &z
	}
	if len(m.Extra) > 0 {
		out.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

// take removes key from raw, treating JSON null as absent.
func take(raw map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	delete(raw, key)
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

// CRM ids are large integers and arrive as either strings or numbers.
func decodeID(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return "", err
	}
	return n.String(), nil
}

// decodeMetadata turns a nullable JSONB column into *Metadata. SQL NULL,
// JSON null and non-object values all yield nil.
func decodeMetadata(raw []byte) (*Metadata, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}
	var m Metadata
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func encodeMetadata(m *Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
