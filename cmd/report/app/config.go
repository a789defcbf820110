package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

// ImageFormat is the output image encoding.
type ImageFormat string

const defaultFontPath = "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"

type Config struct {
	DBPath        string
	SessionID     int64
	OutputFile    string
	Format        ImageFormat
	FontPath      string
	Width         int
	Height        int
	From          *time.Time
	To            *time.Time
	Verbose       bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		FontPath: defaultFontPath,
		Width:    1280,
		Height:   720,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, from, to string
	flag.StringVar(&c.DBPath, "db", "", "Path to the measurement database file")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID (0 lists the sessions in the database)")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&c.FontPath, "font", defaultFontPath, "Path to a TTF font used for annotations")
	flag.IntVar(&c.Width, "width", c.Width, "Output image width in pixels")
	flag.IntVar(&c.Height, "height", c.Height, "Output image height in pixels")
	flag.StringVar(&from, "from", "", "Start of the time range (RFC 3339)")
	flag.StringVar(&to, "to", "", "End of the time range (RFC 3339)")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as scales and the legend")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)

	// Session 0 only lists the sessions in the database; the rendering
	// options are not required then.
	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID < 0 {
		err = errors.New("session id must not be negative")
	} else if c.SessionID > 0 {
		if c.OutputFile == "" {
			err = errors.New("output file is required")
		} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
			err = fmt.Errorf("invalid image format: %s", imageFormat)
		} else if c.Width < 320 || c.Height < 240 {
			err = fmt.Errorf("image size %dx%d is too small", c.Width, c.Height)
		}
	}

	if err == nil && from != "" {
		var t time.Time
		if t, err = time.Parse(time.RFC3339, from); err == nil {
			c.From = &t
		}
	}
	if err == nil && to != "" {
		var t time.Time
		if t, err = time.Parse(time.RFC3339, to); err == nil {
			c.To = &t
		}
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	if c.SessionID > 0 {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}
	return c, nil
}
