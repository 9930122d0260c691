package email

// RawMessage is an undecoded message as fetched from the server. SeqNum is
// only meaningful inside the session that produced it; UID is stable.
type RawMessage struct {
	SeqNum uint32
	UID    string
	Body   []byte
}
