package viewbridge

import "sync"

// command is the closed set of operations applied on the render thread.
// Each kind carries only the data needed to apply it; commands are immutable
// once enqueued and applied at most once, in enqueue order.
type command interface {
	kind() string
}

type cmdInit struct {
	gpu          bool
	resourcePath string
}

type cmdShutdown struct{}

type cmdCreateView struct {
	name          string
	width, height int
}

type cmdDeleteView struct {
	name string
}

type cmdLoadHTML struct {
	name string
	html string
}

type cmdEvalScript struct {
	name   string
	script string
}

type cmdResize struct {
	name          string
	width, height int
}

type cmdMouseInput struct {
	name      string
	x, y      int
	eventKind int
	button    int
}

type cmdScrollInput struct {
	name      string
	x, y      int
	eventKind int
}

type cmdKeyInput struct {
	name       string
	eventKind  int
	virtualKey int
	modifiers  int
}

type cmdFocus struct {
	name string
}

type cmdUnfocus struct {
	name string
}

type cmdRegisterImage struct {
	id            string
	pixels        []byte
	width, height int
}

func (cmdInit) kind() string          { return "init" }
func (cmdShutdown) kind() string      { return "shutdown" }
func (cmdCreateView) kind() string    { return "create_view" }
func (cmdDeleteView) kind() string    { return "delete_view" }
func (cmdLoadHTML) kind() string      { return "load_html" }
func (cmdEvalScript) kind() string    { return "eval_script" }
func (cmdResize) kind() string        { return "resize" }
func (cmdMouseInput) kind() string    { return "mouse" }
func (cmdScrollInput) kind() string   { return "scroll" }
func (cmdKeyInput) kind() string      { return "key" }
func (cmdFocus) kind() string         { return "focus" }
func (cmdUnfocus) kind() string       { return "unfocus" }
func (cmdRegisterImage) kind() string { return "register_image" }

// commandQueue is the ordered inbox from host threads to the render thread.
// Enqueue never blocks beyond the lock; drainAll swaps the backlog out so
// the dispatcher applies commands without holding it.
type commandQueue struct {
	mu       sync.Mutex
	commands []command
}

func (q *commandQueue) enqueue(cmd command) {
	q.mu.Lock()
	q.commands = append(q.commands, cmd)
	q.mu.Unlock()
}

func (q *commandQueue) drainAll() []command {
	q.mu.Lock()
	drained := q.commands
	q.commands = nil
	q.mu.Unlock()
	return drained
}
