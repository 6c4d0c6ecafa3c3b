package keizu

import (
	"io"

	"github.com/rs/zerolog"
)

// newLogger builds the default World logger at the configured level. An
// unparsable level falls back to info.
func newLogger(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("module", "keizu").Logger()
}

// Logger returns the World's logger.
func (w *World) Logger() *zerolog.Logger {
	return &w.log
}

// systemLogger creates a sub logger with the entry {"system": name}.
func (w *World) systemLogger(name string) zerolog.Logger {
	return w.log.With().Str("system", name).Logger()
}

// LogWorld writes a summary of the world: live entities, registered
// component types and the size of every tracked change log.
func (w *World) LogWorld(level zerolog.Level) {
	components := zerolog.Arr()
	for _, s := range w.components.columns {
		dict := zerolog.Dict().
			Uint32("component_id", uint32(s.componentID())).
			Str("component_name", s.componentType().String()).
			Bool("tracked", s.tracker() != nil)
		if t := s.tracker(); t != nil {
			dict = dict.Int("retained_events", t.channel.Len())
		}
		components = components.Dict(dict)
	}
	w.log.WithLevel(level).
		Int("entities", w.Len()).
		Int("capacity", len(w.entities.metas)).
		Int("total_components", len(w.components.columns)).
		Array("components", components).
		Msg("world")
}

// LogEntity writes the component types held by e.
func (w *World) LogEntity(level zerolog.Level, e Entity) error {
	if !w.Alive(e) {
		return notFound(e)
	}
	components := zerolog.Arr()
	for _, s := range w.components.columns {
		if s.has(e.ID) {
			components = components.Str(s.componentType().String())
		}
	}
	w.log.WithLevel(level).
		Uint32("entity_id", e.ID).
		Uint32("entity_version", e.Version).
		Array("components", components).
		Msg("entity")
	return nil
}

func prettyLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: out}).
		Level(level).
		With().
		Timestamp().
		Str("module", "keizu").
		Logger()
}
