package main

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thebagchi/asn1per"
	"github.com/thebagchi/asn1per/lib/schema"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "asn1per",
		Short:         "Encode and decode ASN.1 values with the Packed Encoding Rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(opts, cmd.Flags()); err != nil {
				return err
			}
			return setupLogging(opts)
		},
	}
	installFlags(opts, cmd.PersistentFlags())

	cmd.AddCommand(
		newTypesCommand(opts),
		newEncodeCommand(opts),
		newDecodeCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

func loadSchema(opts *options) (*schema.Schema, error) {
	if opts.Schema == "" {
		return nil, errors.New("a schema file is required (--schema)")
	}
	return asn1per.Parse(opts.Schema)
}

func variant(aligned bool) string {
	if aligned {
		return "aligned"
	}
	return "unaligned"
}

func newTypesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the types of a schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(opts)
			if err != nil {
				return err
			}
			for _, name := range s.Names() {
				id, _ := s.Lookup(name)
				node, _ := s.Tree.Node(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, node.Kind)
			}
			return nil
		},
	}
}

func newEncodeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "encode TYPE JSON",
		Short: "Encode a JSON value and print the encoding in hex",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(opts)
			if err != nil {
				return err
			}
			value, err := s.ParseValue(args[0], []byte(args[1]))
			if err != nil {
				return errors.Wrapf(err, "parsing %s value", args[0])
			}
			data, err := s.Encode(args[0], value, opts.Aligned)
			if err != nil {
				return errors.Wrapf(err, "encoding %s", args[0])
			}
			logrus.WithFields(logrus.Fields{
				"type":    args[0],
				"variant": variant(opts.Aligned),
				"octets":  len(data),
			}).Debug("encoded")
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
			return nil
		},
	}
}

func newDecodeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "decode TYPE HEX",
		Short: "Decode a hex encoding and print the value as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(opts)
			if err != nil {
				return err
			}
			data, err := hex.DecodeString(strings.Join(strings.Fields(args[1]), ""))
			if err != nil {
				return errors.Wrap(err, "invalid hex input")
			}
			value, err := s.Decode(args[0], data, opts.Aligned)
			if err != nil {
				return errors.Wrapf(err, "decoding %s", args[0])
			}
			logrus.WithFields(logrus.Fields{
				"type":    args[0],
				"variant": variant(opts.Aligned),
				"octets":  len(data),
			}).Debug("decoded")
			out, err := s.FormatValue(args[0], value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "asn1per version %s, %s %s/%s\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
