// Provides platform-appropriate paths for eosimg.
//
// Paths follow XDG conventions on Linux and platform-native conventions on
// macOS and Windows, with "eosimg" as the subdirectory under each base path.
package paths
