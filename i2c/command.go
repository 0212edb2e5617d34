package i2c

// Command is one step of bus work run on the queue goroutine of a connection.
type Command interface {
	Execute(queue Queue) error
}

// Completion receives the outcome of a command once the queue has run it.
type Completion func(Command, error)

type CommandWithCompletion struct {
	Command    Command
	Completion Completion
}

// CommandSequence executes as a single command; the first error stops the sequence.
type CommandSequence []CommandWithCompletion

func (seq CommandSequence) Execute(queue Queue) (err error) {
	for _, pair := range seq {
		err = pair.Command.Execute(queue)
		if pair.Completion != nil {
			pair.Completion(pair.Command, err)
		}
		if err != nil {
			return
		}
	}
	return
}

// closeCommand stops the queue goroutine after everything enqueued before it ran.
type closeCommand struct{}

func (c *closeCommand) Execute(Queue) error { return nil }
