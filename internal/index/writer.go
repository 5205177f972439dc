package index

import "context"

// Writer receives index mutations. The batch pipeline passes a Redis
// pipeline; tests pass an Ops recorder.
type Writer interface {
	ZAdd(key string, score float64, member string)
	ZRem(key string, member string)
	SAdd(key string, member string)
	SRem(key string, member string)
}

// DocumentReader reads the stored raw form of a document. A missing document
// yields an empty RawDocument and no error.
type DocumentReader interface {
	Fetch(ctx context.Context, key string) (RawDocument, error)
}

// OpKind names a mutation.
type OpKind uint8

const (
	OpZAdd OpKind = iota
	OpZRem
	OpSAdd
	OpSRem
)

// Op is one recorded mutation.
type Op struct {
	Kind   OpKind
	Key    string
	Member string
	Score  float64
}

// Ops records mutations in order so they can be inspected or replayed.
type Ops []Op

func (o *Ops) ZAdd(key string, score float64, member string) {
	*o = append(*o, Op{Kind: OpZAdd, Key: key, Member: member, Score: score})
}

func (o *Ops) ZRem(key string, member string) {
	*o = append(*o, Op{Kind: OpZRem, Key: key, Member: member})
}

func (o *Ops) SAdd(key string, member string) {
	*o = append(*o, Op{Kind: OpSAdd, Key: key, Member: member})
}

func (o *Ops) SRem(key string, member string) {
	*o = append(*o, Op{Kind: OpSRem, Key: key, Member: member})
}

// Replay applies the recorded mutations to w in order.
func (o Ops) Replay(w Writer) {
	for _, op := range o {
		switch op.Kind {
		case OpZAdd:
			w.ZAdd(op.Key, op.Score, op.Member)
		case OpZRem:
			w.ZRem(op.Key, op.Member)
		case OpSAdd:
			w.SAdd(op.Key, op.Member)
		case OpSRem:
			w.SRem(op.Key, op.Member)
		}
	}
}
