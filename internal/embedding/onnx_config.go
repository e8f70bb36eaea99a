package embedding

// ONNXConfig describes a CLIP vision encoder exported to ONNX.
type ONNXConfig struct {
	// ModelPath is the .onnx file.
	ModelPath string
	// LibraryPath optionally points at the onnxruntime shared library.
	LibraryPath string
	// Model is the identifier recorded in the database, e.g. "clip-ViT-B-32".
	Model      string
	Dimensions int
	ImageSize  int
	InputName  string
	OutputName string
}

func (c *ONNXConfig) applyDefaults() {
	if c.Dimensions <= 0 {
		c.Dimensions = 512
	}
	if c.ImageSize <= 0 {
		c.ImageSize = CLIPImageSize
	}
	if c.InputName == "" {
		c.InputName = "pixel_values"
	}
	if c.OutputName == "" {
		c.OutputName = "image_embeds"
	}
}
