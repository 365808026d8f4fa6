package message

// Iterator is implemented by message streams.
type Iterator interface {
	Next() bool
	Message() Message
	Error() error
}

var (
	_ Iterator = (*Decoder)(nil)
	_ Iterator = (*SliceIterator)(nil)
)

// SliceIterator iterates over an in-memory list of messages.
type SliceIterator struct {
	msgs       []Message
	latchedMsg Message
}

// FromSlice returns an iterator over msgs.
func FromSlice(msgs ...Message) *SliceIterator {
	return &SliceIterator{msgs: msgs}
}

func (it *SliceIterator) Next() bool {
	if len(it.msgs) == 0 {
		return false
	}

	it.latchedMsg = it.msgs[0]
	it.msgs = it.msgs[1:]
	return true
}

func (it *SliceIterator) Message() Message {
	return it.latchedMsg
}

func (*SliceIterator) Error() error {
	return nil
}
