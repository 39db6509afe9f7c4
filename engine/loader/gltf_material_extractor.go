package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/Carmen-Shannon/oxy-fixed/engine/renderer"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser gltfParser
	// textures caches decoded images by image index so primitives sharing an image share a Texture.
	textures map[int]*renderer.Texture
}

// gltfMaterialExtractor maps glTF materials onto the renderer's color-material model.
// The base color factor becomes the ambient and diffuse color; the base color texture, if any,
// is decoded to RGBA.
type gltfMaterialExtractor interface {
	// ExtractMaterial returns the renderer material and base color texture for a glTF material.
	// An index of -1 yields the glTF default material: opaque white with no texture.
	//
	// Parameters:
	//   - materialIndex: the glTF material index, or -1
	//
	// Returns:
	//   - renderer.Material: the material colors
	//   - *renderer.Texture: the decoded base color texture, or nil
	//   - error: error if the index is out of range or the image cannot be decoded
	ExtractMaterial(materialIndex int) (renderer.Material, *renderer.Texture, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

func newGLTFMaterialExtractor(parser gltfParser) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{
		parser:   parser,
		textures: make(map[int]*renderer.Texture),
	}
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (renderer.Material, *renderer.Texture, error) {
	white := renderer.ColorWhite
	mat := renderer.Material{Ambient: white, Diffuse: white, Specular: renderer.ColorBlack}
	if materialIndex < 0 {
		return mat, nil, nil
	}

	doc := e.parser.Document()
	if doc == nil {
		return mat, nil, errNoDocument
	}
	if materialIndex >= len(doc.Materials) {
		return mat, nil, fmt.Errorf("material index %d out of range", materialIndex)
	}

	src := &doc.Materials[materialIndex]
	pbr := src.PbrMetallicRoughness
	if pbr == nil {
		return mat, nil, nil
	}

	if pbr.BaseColorFactor != nil {
		base := renderer.Color(*pbr.BaseColorFactor)
		if src.AlphaMode != "BLEND" {
			base[3] = 1
		}
		mat.Ambient, mat.Diffuse = base, base
		mat.Specular[3] = base[3]
	}

	if pbr.BaseColorTexture == nil {
		return mat, nil, nil
	}
	if pbr.BaseColorTexture.TexCoord != 0 {
		common.ComponentLogger("loader").Warn("ignoring base color texture on a secondary UV set", "material", src.Name, "texCoord", pbr.BaseColorTexture.TexCoord)
		return mat, nil, nil
	}
	tex, err := e.loadTexture(pbr.BaseColorTexture.Index)
	if err != nil {
		return mat, nil, fmt.Errorf("material %q: base color texture: %w", src.Name, err)
	}
	return mat, tex, nil
}

// loadTexture decodes the image behind a glTF texture. Images may live in a buffer view, a data URI,
// or a file relative to the asset.
func (e *gltfMaterialExtractorImpl) loadTexture(textureIndex int) (*renderer.Texture, error) {
	doc := e.parser.Document()
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", textureIndex)
	}
	src := doc.Textures[textureIndex].Source
	if src == nil {
		return nil, nil
	}
	if *src < 0 || *src >= len(doc.Images) {
		return nil, fmt.Errorf("image index %d out of range", *src)
	}
	if tex, ok := e.textures[*src]; ok {
		return tex, nil
	}

	img := &doc.Images[*src]
	var (
		data []byte
		err  error
	)
	switch {
	case img.BufferView != nil:
		data, err = e.parser.ReadBufferView(*img.BufferView)
	case strings.HasPrefix(img.URI, "data:"):
		data, _, err = decodeDataURI(img.URI)
	case img.URI != "":
		data, err = os.ReadFile(filepath.Join(e.parser.BaseDir(), img.URI))
	default:
		return nil, fmt.Errorf("image %d has neither a bufferView nor a URI", *src)
	}
	if err != nil {
		return nil, fmt.Errorf("image %d: %w", *src, err)
	}

	pix, w, h, err := common.DecodeImageBytes(data)
	if err != nil {
		return nil, fmt.Errorf("image %d: %w", *src, err)
	}
	tex := &renderer.Texture{Width: w, Height: h, Format: common.ImageFormatRGBA, Pixels: pix}
	e.textures[*src] = tex
	return tex, nil
}
