// Converts a vendor filesystem archive into a configured container image.
//
// A [Pipeline] drives three stages strictly in sequence against a
// [Runtime]: the archive is imported as an intermediate base image, the
// final image is built on top of it from a [descriptor.Descriptor], and the
// intermediate image is force-removed. Each stage gates the next: the first
// failure moves the pipeline to [Failed] and nothing further is attempted.
// A failed build therefore leaves the intermediate image in place, and a
// failed cleanup fails the run even though the final image was produced.
//
// The intermediate repository name is produced by a [Namer]. The default
// [TimestampNamer] appends the current Unix time in seconds to the
// descriptor's prefix; two runs started within the same second can collide.
//
// Example usage:
//
//	p := pipeline.New(pipeline.Options{
//	    Runtime:    rt,
//	    Descriptor: d,
//	})
//
//	result, err := p.Run(ctx, "cEOS-lab-4.32.0F.tar", "4.32.0F")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Final) // ceos:4.32.0F
package pipeline
