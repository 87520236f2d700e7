package functest

import (
	"testharvest/internal/connector"
)

func init() {
	connector.Register(Name, connector.Entry{
		New: func(url string, cfg connector.Config) (connector.Connector, error) {
			opts := []Option{WithTag(cfg.Tag)}
			if cfg.Archive != nil {
				opts = append(opts, WithArchive(cfg.Archive))
			}
			if cfg.Replay {
				opts = append(opts, WithReplay(true))
			}
			return New(url, opts...)
		},
		Categories: []string{Category},
		Caps:       connector.Capabilities{Archiving: true, Resuming: false},
	})
}
