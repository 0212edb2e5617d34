// Package interfaces holds the contracts shared between the engine view models and
// the user interfaces that render them.
package interfaces

// CommandArgs is the value a command's JSON arguments are decoded into.
type CommandArgs interface{}

// ViewModeler is implemented by view models that publish a snapshot instead of
// themselves, so the published value can be marshaled without holding their locks.
type ViewModeler interface {
	ViewModel() interface{}
}

// Command is an operation the UI may request by name, e.g. "readBlock" on the
// "space" view.
type Command interface {
	// CreateArgs returns a pointer for the arguments to be unmarshaled into, or nil
	// when the command takes none.
	CreateArgs() CommandArgs
	Execute(args CommandArgs) error
}

// ViewModelCommandHandler looks up a command of a single view.
type ViewModelCommandHandler interface {
	CommandFor(command string) (Command, error)
}

// ViewCommandHandler dispatches commands to views; the root view model implements it.
type ViewCommandHandler interface {
	CommandFor(view, command string) (Command, error)

	// NotifyViewTo pushes every view to one newly attached UI.
	NotifyViewTo(viewNotifier ViewNotifier)
}

// ViewNotifier publishes a changed view model to the UI.
type ViewNotifier interface {
	NotifyView(view string, viewModel interface{})
}
