// Validates and formats the image references handled by the converter.
//
// A [Ref] is a repository name and a tag. Both are validated against the
// docker reference grammar when the ref is constructed, so every runtime
// backend can rely on them being well formed. The docker engine addresses
// images by their familiar form ("ceos:4.32.0F") while containerd stores
// them under the fully qualified form ("docker.io/library/ceos:4.32.0F").
//
// Example usage:
//
//	ref, err := image.NewRef("ceos", "4.32.0F")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(ref)              // ceos:4.32.0F
//	fmt.Println(ref.Normalized()) // docker.io/library/ceos:4.32.0F
package image
