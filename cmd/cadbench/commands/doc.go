// Package commands defines the cadbench CLI.
//
// Commands
//
//   - generate     Evaluate model outputs into scripts, STL files and point clouds
//   - score        Align generated parts with ground truth and report mean IoU
//   - align        Align one script's solid onto another's and print the IoU
//   - eval         Evaluate a single script and report its solid
//   - config init  Write the default configuration file
//
// The root command loads the configuration and builds the logger before
// any subcommand runs. Flags given on the command line override values
// from the configuration file.
package commands
