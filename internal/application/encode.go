package application

import (
	"bytes"
	"strconv"

	"bridgesnap/internal/domain"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// EncodeCanonical serializes an ordered record sequence into its canonical
// byte string: a compact JSON array with each record's keys in lexicographic
// order (blockNumber, data, logIndex, topics, transactionHash), integers in
// canonical decimal, and no incidental whitespace. The output is a pure
// function of the field values; identical sequences always produce
// byte-identical output.
func EncodeCanonical(records []domain.NormalizedLogRecord) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, record := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeRecord(&buf, record)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// Hex fields never contain characters that need JSON escaping, so they are
// written verbatim between quotes.
func encodeRecord(buf *bytes.Buffer, record domain.NormalizedLogRecord) {
	buf.WriteString(`{"blockNumber":`)
	buf.WriteString(strconv.FormatUint(record.BlockNumber, 10))
	buf.WriteString(`,"data":"`)
	buf.WriteString(record.Data)
	buf.WriteString(`","logIndex":`)
	buf.WriteString(strconv.FormatUint(record.LogIndex, 10))
	buf.WriteString(`,"topics":[`)
	for i, topic := range record.Topics {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(topic)
		buf.WriteByte('"')
	}
	buf.WriteString(`],"transactionHash":"`)
	buf.WriteString(record.TransactionHash)
	buf.WriteString(`"}`)
}

// Commitment hashes the canonical encoding with Keccak-256 and renders the
// digest as lowercase 0x-prefixed hex. The algorithm and encoding are a
// compatibility constant shared with downstream verifiers.
func Commitment(records []domain.NormalizedLogRecord) string {
	return hexutil.Encode(crypto.Keccak256(EncodeCanonical(records)))
}
