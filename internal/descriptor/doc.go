// Declares the configuration layered onto an imported base image.
//
// A [Descriptor] is the declarative equivalent of a Dockerfile: a base image
// reference parameterized by two build arguments, guest environment
// variables, exposed ports, volumes, file overlays and an init command. The
// default descriptor and its overlay files are embedded in the binary and
// are not user configurable. Each runtime backend consumes the same
// descriptor: the docker backend renders it with [Descriptor.Dockerfile],
// the containerd backend applies it directly to the image config.
//
// Example usage:
//
//	d, err := descriptor.Default()
//	if err != nil {
//	    return err
//	}
//	base, err := d.BaseRef(d.BuildArgs(intermediate))
//	if err != nil {
//	    return err
//	}
package descriptor
