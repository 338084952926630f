// Parses flags and runs eosimg commands.
//
// The default command converts a vendor archive into an image:
//
//	eosimg [flags] <archive> <tag>
//
// Other commands:
//
//	eosimg dockerfile   Print the build description used for the final image.
//	eosimg version      Show version information.
//
// Global flags:
//
//	-q, --quiet                  Suppress informational output.
//	-v, --verbose                Enable verbose output.
//	-d, --debug                  Enable debug output.
//	    --log-format             Log record format (auto, text, json).
//	    --runtime                Image store (containerd, docker).
//	    --containerd-address     Containerd socket path.
//	    --containerd-namespace   Containerd namespace.
//	    --snapshotter            Snapshotter for unpacking.
//	    --platform               Platform of imported images.
//	    --unpack                 Unpack the final image.
//	    --docker-host            Docker engine endpoint.
//	    --naming                 Intermediate naming scheme (timestamp, uuid).
//
// Every flag also reads an EOSIMG_* environment variable, and defaults may be
// placed in a JSON file in the user config directory. Flags override
// build-time defaults set via linker flags. After parsing, the global logger
// is reconfigured to reflect the final level and verbosity.
package cli
