// Package panel wires configured widgets to their backing services.
package panel

import "github.com/bnema/vibepanel/internal/services"

// Binding ties a widget render function to a service subscription. The
// first render happens synchronously inside Bind via the service's
// immediate notify, so a freshly built widget never shows placeholder
// state.
type Binding struct {
	id         services.CallbackID
	disconnect func(services.CallbackID)
	closed     bool
}

// Bind subscribes render to a service. connect/disconnect are the
// service's Connect and Disconnect methods.
func Bind[T any](
	connect func(func(T)) services.CallbackID,
	disconnect func(services.CallbackID),
	render func(T),
) *Binding {
	return &Binding{
		id:         connect(render),
		disconnect: disconnect,
	}
}

// Close detaches the widget from the service. Safe to call twice; widgets
// close their bindings when their GTK counterparts are destroyed.
func (b *Binding) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.disconnect(b.id)
}
