package java

import (
	"fmt"
	"strconv"

	"github.com/wippyai/wasm-exporter/exporter"
	"github.com/wippyai/wasm-exporter/wast"
)

// syscallNames maps i386 Linux system-call numbers, as used by emscripten's
// ___syscallN imports, to their names.
var syscallNames = map[int]string{
	1: "exit", 3: "read", 4: "write", 5: "open", 6: "close", 9: "link",
	10: "unlink", 12: "chdir", 14: "mknod", 15: "chmod", 20: "getpid",
	29: "pause", 33: "access", 34: "nice", 36: "sync", 37: "kill",
	38: "rename", 39: "mkdir", 40: "rmdir", 41: "dup", 42: "pipe",
	45: "brk", 54: "ioctl", 57: "setpgid", 60: "umask", 63: "dup2",
	64: "getppid", 65: "getpgrp", 66: "setsid", 75: "setrlimit",
	77: "getrusage", 83: "symlink", 85: "readlink", 91: "munmap",
	94: "fchmod", 96: "getpriority", 97: "setpriority", 102: "socketcall",
	114: "wait4", 118: "fsync", 121: "setdomainname", 122: "uname",
	125: "mprotect", 132: "getpgid", 133: "fchdir", 140: "llseek",
	142: "newselect", 144: "msync", 145: "readv", 146: "writev",
	147: "getsid", 148: "fdatasync", 150: "mlock", 151: "munlock",
	152: "mlockall", 153: "munlockall", 163: "mremap", 168: "poll",
	178: "rt_sigqueueinfo", 180: "pread64", 181: "pwrite64", 183: "getcwd",
	191: "ugetrlimit", 192: "mmap2", 193: "truncate64", 194: "ftruncate64",
	195: "stat64", 196: "lstat64", 197: "fstat64", 198: "lchown32",
	199: "getuid32", 200: "getgid32", 201: "geteuid32", 202: "getegid32",
	203: "setreuid32", 204: "setregid32", 205: "getgroups32",
	206: "setgroups32", 207: "fchown32", 208: "setresuid32",
	209: "getresuid32", 210: "setresgid32", 211: "getresgid32",
	212: "chown32", 213: "setuid32", 214: "setgid32", 218: "mincore",
	219: "madvise", 220: "getdents64", 221: "fcntl64", 252: "exit_group",
	265: "clock_gettime", 268: "statfs64", 269: "fstatfs64",
	272: "fadvise64_64", 295: "openat", 296: "mkdirat", 297: "mknodat",
	298: "fchownat", 300: "fstatat64", 301: "unlinkat", 302: "renameat",
	303: "linkat", 304: "symlinkat", 305: "readlinkat", 306: "fchmodat",
	307: "faccessat", 320: "utimensat", 324: "fallocate", 330: "dup3",
	331: "pipe2", 333: "preadv", 334: "pwritev", 337: "recvmmsg",
	340: "prlimit64", 345: "sendmmsg",
}

// SyscallName returns the name of system call n, or "" when unknown.
func SyscallName(n int) string {
	return syscallNames[n]
}

// syscallMethod writes a system-call method around body. The import keeps
// its (which, varargs) calling convention.
func syscallMethod(name string, out *exporter.Buffer, body func()) {
	out.Line("private int " + name + "(int syscall, int address) {")
	out.Line("try {")
	body()
	out.Line("} catch (Throwable e) {")
	out.Line("throw new RuntimeException(e);")
	out.Line("}")
	out.Line("}")
}

func checkSyscall(fn *wast.Func) error {
	want := wast.Signature{Params: []wast.Type{wast.I32, wast.I32}, Result: wast.I32}
	if fn.Sig.Key() != want.Key() {
		return fmt.Errorf("system call %s has signature %s, want %s", fn.Import, fn.Sig.Key(), want.Key())
	}
	return nil
}

// syscallHandler returns a StubWriter emitting body inside a system-call method.
func syscallHandler(body ...string) exporter.StubWriter {
	return func(name string, fn *wast.Func, out *exporter.Buffer) error {
		if err := checkSyscall(fn); err != nil {
			return err
		}
		syscallMethod(name, out, func() {
			for _, l := range body {
				out.Line(l)
			}
		})
		return nil
	}
}

func syscallImport(n int) wast.Import {
	return wast.Import{Namespace: "env", Name: exporter.SyscallPrefix + strconv.Itoa(n)}
}

// DefaultHandlers returns the built-in host handlers: close, ioctl, llseek and
// writev system calls, and env.abort.
func DefaultHandlers() exporter.Handlers {
	return exporter.Handlers{
		syscallImport(6):  syscallHandler("return 0;"),
		syscallImport(54): syscallHandler("return 0;"),
		syscallImport(140): syscallHandler(
			"int result = this.getInt(address + 12);",
			"this.putLong(result, 0L);",
			"return 0;",
		),
		syscallImport(146): syscallHandler(
			"int fd = this.getInt(address);",
			"int iov = this.getInt(address + 4);",
			"int iovcnt = this.getInt(address + 8);",
			"java.io.PrintStream stream = fd == 2 ? System.err : System.out;",
			"int written = 0;",
			"for (int n = 0; n < iovcnt; n++) {",
			"int ptr = this.getInt(iov + n * 8);",
			"int len = this.getInt(iov + n * 8 + 4);",
			"for (int i = 0; i < len; i++) stream.write(this.getByte(ptr + i));",
			"written += len;",
			"}",
			"stream.flush();",
			"return written;",
		),
		{Namespace: "env", Name: "abort"}: abort,
	}
}

func abort(name string, fn *wast.Func, out *exporter.Buffer) error {
	params := declareParams(fn)
	out.Line("private " + Type(fn.Sig.Result) + " " + name + "(" + params + ") {")
	out.Line("throw new RuntimeException(\"abort\");")
	out.Line("}")
	return nil
}

// missingSyscall writes the failing stub for a system call with no handler.
func missingSyscall(name string, fn *wast.Func, n int, out *exporter.Buffer) error {
	if err := checkSyscall(fn); err != nil {
		return err
	}
	if sys := SyscallName(n); sys != "" {
		out.Line("// " + sys)
	}
	syscallMethod(name, out, func() {
		out.Linef("return TODO_i32(%s);", javaString("unimplemented syscall "+strconv.Itoa(n)))
	})
	return nil
}

// declareParams renders a parameter list a0, a1, ... for fn's signature.
func declareParams(fn *wast.Func) string {
	var s string
	for i, t := range fn.Sig.Params {
		if i > 0 {
			s += ", "
		}
		s += Type(t) + " a" + strconv.Itoa(i)
	}
	return s
}
