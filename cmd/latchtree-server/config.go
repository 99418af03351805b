package main

import "github.com/BurntSushi/toml"

// Config is loaded from a TOML file (teacher's config-loading idiom,
// ported from dict/BurntSushi-toml use in the tikv/pd pack repo — the
// teacher itself hardcodes ":3000" in server.Server).
type Config struct {
	Listen struct {
		Addr string `toml:"addr"`
	} `toml:"listen"`
	Tree struct {
		FanOut       int `toml:"fan_out"`
		SubtreeDepth int `toml:"subtree_depth"`
	} `toml:"tree"`
}

func defaultConfig() Config {
	var c Config
	c.Listen.Addr = ":3000"
	c.Tree.FanOut = 32
	c.Tree.SubtreeDepth = 2
	return c
}

func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
