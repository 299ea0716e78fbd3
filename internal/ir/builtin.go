package ir

// Built-in primitive declarations, visible in every package without import.
var (
	BufferType = &TypeDecl{Name: "Buffer", Kind: KindBuffer}
	ImageType  = &TypeDecl{Name: "Image", Kind: KindImage}
)

var builtins = map[Name]*TypeDecl{
	BufferType.Name: BufferType,
	ImageType.Name:  ImageType,
}

func init() {
	for _, d := range builtins {
		tree, err := NewPrimitiveTree(d)
		if err != nil {
			panic(err)
		}
		d.Tree = tree
	}
}
