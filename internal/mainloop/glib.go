package mainloop

import "github.com/jwijenbergh/puregotk/v4/glib"

// GLibPost dispatches fn onto the GTK main loop via an idle source.
func GLibPost(fn func()) {
	cb := glib.SourceFunc(func(_ uintptr) bool {
		fn()
		return false
	})
	glib.IdleAdd(&cb, 0)
}
