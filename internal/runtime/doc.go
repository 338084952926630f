// Package runtime stores converted images in containerd.
//
// A [Runtime] connects to a containerd daemon and implements the three
// image operations of the conversion pipeline directly against the content
// and image stores, without starting any container:
//
//   - [Runtime.Import] turns a root filesystem tarball into a single-layer
//     image. The tarball is decompressed, recompressed as a gzip layer and
//     written with a fresh config and manifest.
//   - [Runtime.Build] appends a layer holding the descriptor's overlay files
//     to a base image and rewrites the image config with the descriptor's
//     environment, ports, volumes and command.
//   - [Runtime.RemoveImage] deletes an image record, optionally tearing down
//     containers that were created from it first.
//
// Blobs written during an operation are held by a content lease until the
// image record that references them exists, so garbage collection cannot
// reclaim them half way. Image names are stored fully qualified
// ("docker.io/library/ceos:4.32.0F") so that nerdctl and ctr list them the
// same way docker does.
//
// Example usage:
//
//	rt, err := runtime.New(runtime.Config{Namespace: "default"})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	if err := rt.Import(ctx, "cEOS-lab.tar", base); err != nil {
//	    return err
//	}
package runtime
