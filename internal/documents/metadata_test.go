package documents

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMetadataKeepsUnknownKeys(t *testing.T) {
	raw := `{"account_id":"4876876000000123456","source":"portal","tags":["w2","2024"],"user":{"id":"user-1","email":"a@b.co"}}`

	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.AccountID != "4876876000000123456" {
		t.Fatalf("unexpected account id %q", m.AccountID)
	}
	if m.User == nil || m.User.ID != "user-1" {
		t.Fatalf("unexpected user %+v", m.User)
	}
	if len(m.Extra) != 2 {
		t.Fatalf("expected 2 extra keys, got %v", m.Extra)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"source":"portal"`, `"tags":["w2","2024"]`, `"account_id":"4876876000000123456"`} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestMetadataNumericAccountID(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`{"account_id": 4876876000000123456}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.AccountID != "4876876000000123456" {
		t.Fatalf("expected digits preserved, got %q", m.AccountID)
	}

	if err := json.Unmarshal([]byte(`{"account_id": true}`), &m); err == nil {
		t.Fatalf("expected error for boolean account id")
	}
}

func TestMetadataNullKeysAreAbsent(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`{"account_id":"1","zoho_data":null,"user":null}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.ZohoData != nil || m.User != nil {
		t.Fatalf("expected null keys to decode as absent, got %+v", m)
	}
	if len(m.Extra) != 0 {
		t.Fatalf("expected no extras, got %v", m.Extra)
	}
}

func TestDecodeMetadata(t *testing.T) {
	for _, raw := range []string{"", "null", "  null ", "[]", `"text"`} {
		got, err := decodeMetadata([]byte(raw))
		if err != nil {
			t.Fatalf("decodeMetadata(%q): %v", raw, err)
		}
		if got != nil {
			t.Fatalf("decodeMetadata(%q) = %+v, want nil", raw, got)
		}
	}

	got, err := decodeMetadata([]byte(`{}`))
	if err != nil || got == nil {
		t.Fatalf("expected empty object to decode, got %+v %v", got, err)
	}

	if _, err := decodeMetadata([]byte(`{"account_id":`)); err == nil {
		t.Fatalf("expected malformed object to fail")
	}
}

func TestWithLinkageLeavesOriginalUntouched(t *testing.T) {
	orig := Metadata{
		AccountID: "acc-1",
		Extra:     map[string]json.RawMessage{"source": json.RawMessage(`"portal"`)},
	}
	uploaded := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	merged := orig.WithLinkage(StorageLinkage{ResourceID: "res-1", ParentID: "fld-3", UploadedAt: uploaded})

	if orig.ZohoData != nil {
		t.Fatalf("expected original metadata unchanged")
	}
	if merged.ZohoData == nil || merged.ZohoData.ResourceID != "res-1" {
		t.Fatalf("unexpected linkage %+v", merged.ZohoData)
	}
	merged.Extra["source"] = json.RawMessage(`"changed"`)
	if string(orig.Extra["source"]) != `"portal"` {
		t.Fatalf("expected extras to be deep copied")
	}

	out, err := json.Marshal(merged)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"zoho_data":{"resource_id":"res-1","parent_id":"fld-3"`) {
		t.Fatalf("unexpected encoding %s", out)
	}
}
