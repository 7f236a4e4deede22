package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"tws/internal/discovery"
	twserr "tws/internal/errors"
	"tws/internal/progress"
	"tws/internal/sniff"
	"tws/internal/source"
	"tws/internal/transfer"
)

var opts struct {
	allAddrs   bool
	unbuffered bool
	noResolve  bool
	bufferSize int
	port       int
	mimeType   string
	extraURLs  []string
	urlName    string
	verbose    bool
	announce   bool
	qr         bool
}

var rootCmd = &cobra.Command{
	Use:   "tws [flags] <file>",
	Short: "serve one file (or stdin) to one HTTP client, once",
	Long: `tws binds a dual-stack TCP port, waits for exactly one client,
answers its GET with the file (or with stdin framed as a chunked stream)
and exits. No second connection is ever accepted.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&opts.allAddrs, "all-addresses", "a", false, "include loopback and link-local addresses in the URL list")
	f.BoolVarP(&opts.unbuffered, "unbuffered", "u", false, "flush every write immediately")
	f.BoolVarP(&opts.noResolve, "numeric", "n", false, "skip reverse-DNS resolution of local addresses")
	f.IntVarP(&opts.bufferSize, "buffer", "b", 16384, "read/write buffer size in bytes")
	f.IntVarP(&opts.port, "port", "p", 0, "listen port, 1-65535 (default: random in [8000,9000))")
	f.StringVarP(&opts.mimeType, "mime", "m", "", "force the Content-Type value")
	f.StringArrayVarP(&opts.extraURLs, "url", "U", nil, "extra candidate URL, printed verbatim")
	f.StringVarP(&opts.urlName, "filename", "f", "", "override the path segment used in candidate URLs")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "echo received request headers")
	f.BoolVarP(&opts.announce, "zeroconf", "z", false, "announce the share over mDNS while waiting")
	f.BoolVarP(&opts.qr, "qr", "Q", false, "print a QR code of the primary URL")
}

// Execute runs the root command. Usage requests and every fatal error exit
// with status 1; only a completed transfer exits 0.
func Execute() {
	helpFn := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		helpFn(c, args)
		os.Exit(1)
	})
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := checkOptions(cmd.Flags().Changed("port")); err != nil {
		return err
	}
	port := opts.port
	if port == 0 {
		port = transfer.RandomPort()
	}

	// Setup is a sequence of fallible steps; the first failure
	// short-circuits before any network exposure.
	src, mode, err := openSource(args[0])
	if err != nil {
		return twserr.New(twserr.Setup, "source", args[0], err)
	}

	mimeType := opts.mimeType
	if mimeType == "" {
		if mode == progress.Streaming {
			mimeType = sniff.DefaultType
		} else {
			mimeType = sniff.Detect(args[0])
		}
	}

	segment := opts.urlName
	if segment == "" {
		segment = filepath.Base(args[0])
	}
	segment = url.PathEscape(segment)

	ln, err := transfer.Listen(port)
	if err != nil {
		return err
	}
	defer ln.Close()

	announceURLs(ln.Port(), segment)

	if opts.announce {
		srv, err := discovery.Announce(segment, ln.Port())
		if err != nil {
			log.Println(twserr.New(twserr.Collaborator, "mdns", "announcement disabled", err))
		} else {
			defer srv.Shutdown()
		}
	}

	log.Printf("waiting for a connection on port %d", ln.Port())
	ep, err := ln.AcceptOne(!opts.noResolve)
	if err != nil {
		return err
	}
	peer := ep.IP
	if ep.Name != "" {
		peer = fmt.Sprintf("%s (%s)", ep.Name, ep.IP)
	}
	log.Printf("connection from %s port %s", peer, ep.Port)

	var echo io.Writer
	if opts.verbose {
		echo = os.Stderr
	}
	reqPath, err := transfer.ReadRequest(bufio.NewReader(ep.Conn), echo)
	if err != nil {
		return err
	}
	log.Printf("GET %s", reqPath)

	sess, err := transfer.NewSession(mode, src.Size(), opts.bufferSize, mimeType)
	if err != nil {
		return twserr.New(twserr.Setup, "session", "invalid transfer parameters", err)
	}

	bar := &progress.Renderer{
		Mode:      mode,
		Total:     sess.TotalBytes,
		BarWidth:  progress.DefaultBarWidth,
		TermWidth: progress.TerminalWidth(),
	}
	if progress.IsTerminal(os.Stderr) {
		bar.Out = os.Stderr
	}

	loop := &transfer.Loop{
		Session:    sess,
		Source:     src,
		Writer:     bufio.NewWriterSize(ep.Conn, sess.BufferSize),
		Conn:       ep.Conn,
		Renderer:   bar,
		Unbuffered: opts.unbuffered,
	}
	if err := loop.Run(); err != nil {
		if bar.Out != nil {
			fmt.Fprintln(bar.Out)
		}
		return err
	}
	if bar.Out != nil {
		fmt.Fprintln(bar.Out)
	}
	log.Printf("sent %s bytes in %s (%s)", humanize.Comma(int64(sess.SentBytes)),
		progress.FormatDuration(sess.Elapsed()), progress.FormatRate(sess.Rate()))
	return nil
}

// checkOptions validates flag values before any socket is created.
func checkOptions(portSet bool) error {
	if opts.bufferSize <= 0 {
		return twserr.New(twserr.Setup, "flags",
			fmt.Sprintf("buffer size must be positive, got %d", opts.bufferSize), nil)
	}
	if portSet && (opts.port < 1 || opts.port > 65535) {
		return twserr.New(twserr.Setup, "flags",
			fmt.Sprintf("port must be in 1-65535, got %d", opts.port), nil)
	}
	return nil
}

// openSource picks the payload. When stdin is a pipe the positional
// argument only names the URL path segment and need not exist.
func openSource(path string) (source.Source, progress.Mode, error) {
	if source.IsPipe(os.Stdin) {
		return source.NewPipe(os.Stdin), progress.Streaming, nil
	}
	src, err := source.OpenFile(path)
	if err != nil {
		return nil, progress.FixedLength, err
	}
	return src, progress.FixedLength, nil
}

// announceURLs reports the chosen port and every candidate URL before the
// accept call blocks, so the operator has something to hand to the peer.
func announceURLs(port int, segment string) {
	addrs := discovery.PrimaryFirst(discovery.Local(opts.allAddrs, !opts.noResolve))
	urls := discovery.URLs(addrs, port, segment)
	urls = append(urls, opts.extraURLs...)
	if len(urls) == 0 {
		urls = []string{fmt.Sprintf("http://*:%d/%s", port, segment)}
	}
	fmt.Println("Candidate URLs:")
	for _, u := range urls {
		fmt.Printf("  %s\n", u)
	}
	if opts.qr {
		qrterminal.GenerateHalfBlock(urls[0], qrterminal.L, os.Stdout)
	}
}
