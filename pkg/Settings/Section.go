package Settings

type Config struct {
	APP    APP    `toml:"APP"`
	Logger Logger `toml:"Logger"`
}

func (c *Config) fixup() {
	if c.APP.RtspPort == 0 {
		c.APP.RtspPort = 554
	}
	if c.APP.PayloadType == 0 {
		c.APP.PayloadType = 96
	}
	if c.APP.MaxPayloadSize == 0 {
		c.APP.MaxPayloadSize = 1400
	}
	if c.APP.UdpPortMin == 0 {
		c.APP.UdpPortMin = 30000
	}
	if c.APP.UdpPortMax == 0 {
		c.APP.UdpPortMax = 30999
	}
	if c.APP.ReadTimeout == 0 {
		c.APP.ReadTimeout = 10
	}
	if c.APP.WriteTimeoutMs == 0 {
		c.APP.WriteTimeoutMs = 100
	}
}

type APP struct {
	RtspPort       int `toml:"RtspPort"`
	PayloadType    int `toml:"PayloadType"`    // dynamic range 96-127
	MaxPayloadSize int `toml:"MaxPayloadSize"` // rtp payload budget per packet
	UdpPortMin     int `toml:"UdpPortMin"`     // server side rtp/rtcp port range
	UdpPortMax     int `toml:"UdpPortMax"`
	ReadTimeout    int `toml:"ReadTimeout"`    // seconds, control socket before PLAY
	WriteTimeoutMs int `toml:"WriteTimeoutMs"` // per packet send budget
}

type Logger struct {
	Level       string `toml:"Level"`
	MaxSize     int    `toml:"MaxSize"`
	MaxBackups  int    `toml:"MaxBackups"`
	MaxAge      int    `toml:"MaxAge"`
	Development bool   `toml:"Development"`
}
