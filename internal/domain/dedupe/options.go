package dedupe

// Option configures a Window.
type Option func(*Window)

// WithSize sets how many ids are remembered. Non-positive values keep the default.
func WithSize(n int) Option {
	return func(w *Window) {
		if n > 0 {
			w.size = n
		}
	}
}
