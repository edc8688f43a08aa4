package flitsim

//
// Credit: a set of VC indices, each indicating one freed downstream
// slot, travelling upstream over a Channel. Grounded on
// original_source/src/types/Credit.{h,cc}.
//

// Credit carries a batch of VC indices, each meaning "one slot freed"
// in that VC's downstream buffer (spec §3 "Credit").
type Credit struct {
	vcs []uint32
}

// NewCredit creates an empty Credit with room for up to capacity VCs.
func NewCredit(capacity uint32) *Credit {
	return &Credit{vcs: make([]uint32, 0, capacity)}
}

// PutVc appends a freed VC index to this credit.
func (c *Credit) PutVc(vc uint32) { c.vcs = append(c.vcs, vc) }

// More reports whether there are more VC indices to read.
func (c *Credit) More() bool { return len(c.vcs) > 0 }

// GetVc pops and returns the next freed VC index.
func (c *Credit) GetVc() uint32 {
	vc := c.vcs[0]
	c.vcs = c.vcs[1:]
	return vc
}

// FlitReceiver accepts flits arriving on a given port.
type FlitReceiver interface {
	ReceiveFlit(port uint32, flit *Flit)
}

// FlitSender emits flits on a given port.
type FlitSender interface {
	SendFlit(port uint32, flit *Flit)
}

// CreditReceiver accepts credits arriving on a given port.
type CreditReceiver interface {
	ReceiveCredit(port uint32, credit *Credit)
}

// CreditSender emits credits on a given port.
type CreditSender interface {
	SendCredit(port, vc uint32)
}
