package streaming

import (
	"strings"
	"testing"
	"time"
)

func validMessage() Message {
	return Message{
		Type:          MessageTypeCommitment,
		ChainID:       1,
		Address:       "0x1111111111111111111111111111111111111111",
		FromBlock:     100,
		ToBlock:       200,
		MaxLogs:       5000,
		LogCount:      3,
		UniqueTxCount: 2,
		Commitment:    "0x" + strings.Repeat("ab", 32),
		CreatedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := validMessage()
	payload, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != msg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, msg)
	}
}

func TestEncodeRejectsIncompleteMessage(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Message)
	}{
		{"missing type", func(m *Message) { m.Type = "" }},
		{"missing chain id", func(m *Message) { m.ChainID = 0 }},
		{"missing commitment", func(m *Message) { m.Commitment = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := validMessage()
			tc.mutate(&msg)
			if _, err := Encode(msg); err == nil {
				t.Error("expected encode error")
			}
		})
	}
}

func TestDecodeRejectsInvalidPayload(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"malformed json", "{not json"},
		{"missing type", `{"chain_id":1,"commitment":"0xab"}`},
		{"missing chain id", `{"type":"commitment","commitment":"0xab"}`},
		{"missing commitment", `{"type":"commitment","chain_id":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.payload)); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestEncodeFieldNames(t *testing.T) {
	payload, err := Encode(validMessage())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	for _, field := range []string{
		`"type":"commitment"`,
		`"chain_id":1`,
		`"from_block":100`,
		`"to_block":200`,
		`"unique_tx_count":2`,
		`"commitment":"0x`,
	} {
		if !strings.Contains(string(payload), field) {
			t.Errorf("payload missing %s: %s", field, payload)
		}
	}
}
