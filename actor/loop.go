package actor

// Behavior computes the next state of a process from a message. Returning false
// stops the loop.
type Behavior[S any] func(a *Actor, state S, msg Message) (S, bool)

// Loop receives messages forever, threading state through next, until next returns
// false. It returns the final state.
func Loop[S any](a *Actor, state S, next Behavior[S]) S {
	for {
		msg, err := a.Receive(Infinity)
		if err != nil {
			return state
		}
		var cont bool
		if state, cont = next(a, state, msg); !cont {
			return state
		}
	}
}

// FromBehavior builds a process body that runs Loop from the state returned by init
func FromBehavior[S any](init func(a *Actor) S, next Behavior[S]) Func {
	return func(a *Actor) {
		Loop(a, init(a), next)
	}
}
