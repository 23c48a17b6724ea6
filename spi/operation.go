package spi

// OpKind identifies the shape of an Operation.
type OpKind uint8

const (
	OpWrite OpKind = iota
	OpTransfer
)

// Operation is one step of a batch run by Exec.
type Operation[W Word] struct {
	Kind  OpKind
	Words []W
}

// WriteOp sends words and discards what comes back.
func WriteOp[W Word](words []W) Operation[W] {
	return Operation[W]{Kind: OpWrite, Words: words}
}

// TransferOp exchanges words in place.
func TransferOp[W Word](words []W) Operation[W] {
	return Operation[W]{Kind: OpTransfer, Words: words}
}

// Exec runs ops in order and stops at the first failure. It returns how many
// operations completed; the failing one may have been partially applied.
func Exec[W Word](b *Bus[W, FullDuplex], ops []Operation[W]) (int, error) {
	for i, op := range ops {
		var err error
		switch op.Kind {
		case OpWrite:
			err = b.Write(op.Words)
		case OpTransfer:
			err = TransferInPlace(b, op.Words)
		default:
			panic("spi: unknown operation kind")
		}
		if err != nil {
			return i, err
		}
	}
	return len(ops), nil
}
