package graph

import "sync"

// CommandKind identifies a control override.
type CommandKind int

const (
	// CommandGoto sends execution to Command.Target, ignoring the edge table.
	CommandGoto CommandKind = iota + 1
	// CommandEnd stops the run after the current step.
	CommandEnd
)

// String returns "goto" or "end".
func (k CommandKind) String() string {
	switch k {
	case CommandGoto:
		return "goto"
	case CommandEnd:
		return "end"
	default:
		return "none"
	}
}

// Command is a control override issued by a node.
type Command struct {
	Kind   CommandKind
	Target string
}

// Control is a single-slot mailbox through which a node overrides routing.
//
// The last write wins. TakeCommand reads and clears the slot in one step.
// The runtime allocates one Control per run and takes the command right after
// each node returns, so a command set during a step is seen by exactly that
// step. Safe for concurrent use, so a node may issue commands from goroutines
// it spawns.
type Control struct {
	mu  sync.Mutex
	cmd Command
	set bool
}

// NewControl returns an empty control slot.
func NewControl() *Control {
	return &Control{}
}

// Goto requests a jump to target after the current step.
func (c *Control) Goto(target string) {
	c.put(Command{Kind: CommandGoto, Target: target})
}

// End requests termination after the current step.
func (c *Control) End() {
	c.put(Command{Kind: CommandEnd})
}

func (c *Control) put(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmd = cmd
	c.set = true
}

// TakeCommand returns the pending command and clears the slot.
// ok is false when no command is pending.
func (c *Control) TakeCommand() (cmd Command, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd, ok = c.cmd, c.set
	c.cmd, c.set = Command{}, false
	return cmd, ok
}
