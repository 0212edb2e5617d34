package interfaces

type Observer interface {
	Notify(object interface{})
}

type Observable interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
}

// ObserverList keeps observers in subscription order so notifications are deterministic.
type ObserverList []Observer

func (l *ObserverList) Subscribe(observer Observer) {
	if observer == nil {
		return
	}
	for _, o := range *l {
		if o == observer {
			return
		}
	}
	*l = append(*l, observer)
}

func (l *ObserverList) Unsubscribe(observer Observer) {
	list := *l
	for i, o := range list {
		if o == observer {
			*l = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (l ObserverList) Notify(object interface{}) {
	// copy so observers may unsubscribe from within Notify:
	observers := make([]Observer, len(l))
	copy(observers, l)
	for _, o := range observers {
		o.Notify(object)
	}
}
