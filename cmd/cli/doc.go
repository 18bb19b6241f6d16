// Package cli assembles the bbsweep command-line application: the Cobra
// root command, Viper-backed configuration, zap logging, and the
// interactive sweep console.
package cli
