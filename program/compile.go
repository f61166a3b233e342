package program

import (
	"path/filepath"
	"slices"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/deepnoodle-ai/robot/op"
	"github.com/deepnoodle-ai/robot/vm"
	"gopkg.in/yaml.v3"
)

// session compiles one robot together with the libraries it includes. A
// library included several times is compiled once.
type session struct {
	loader  *Loader
	libs    map[string]*library
	loading []string
	info    *vm.DebugInfo
}

// library is a compiled robot and the names it exports to robots including
// it: its top level variables and its functions.
type library struct {
	robot     *vm.Robot
	variables map[string]*vm.VariableDeclaration
	functions map[string]*vm.FunctionDeclaration
}

func (s *session) compile(id vm.RobotID, doc *Document) (*library, error) {
	c := &compiler{
		s:         s,
		id:        id,
		robot:     vm.NewRobot(id, s.loader.debugger),
		functions: map[string]*vm.FunctionDeclaration{},
	}
	if err := c.includes(doc); err != nil {
		return nil, err
	}
	c.push()
	if err := c.document(doc); err != nil {
		return nil, err
	}
	return &library{robot: c.robot, variables: c.scopes[0], functions: c.functions}, nil
}

func (s *session) include(path string, from vm.RobotID, line int) (*library, error) {
	if lib, ok := s.libs[path]; ok {
		return lib, nil
	}
	loc := errz.SourceLocation{Robot: from.String(), Line: line}
	if slices.Contains(s.loading, path) {
		return nil, errz.Loadf(loc, "circular include of %s", path)
	}
	doc, err := s.loader.Document(path)
	if err != nil {
		return nil, errz.Loadf(loc, "cannot include %s: %s", path, errz.Message(err)).WithCause(err)
	}
	s.loading = append(s.loading, path)
	lib, err := s.compile(robotID(path, doc), doc)
	s.loading = s.loading[:len(s.loading)-1]
	if err != nil {
		return nil, err
	}
	s.libs[path] = lib
	return lib, nil
}

type compiler struct {
	s         *session
	id        vm.RobotID
	robot     *vm.Robot
	libs      []*library
	scopes    []map[string]*vm.VariableDeclaration
	functions map[string]*vm.FunctionDeclaration
	loops     int
	function  *vm.FunctionDeclaration
}

func (c *compiler) pos(line int) vm.Position {
	return vm.Position{Robot: c.id, Line: line}
}

func (c *compiler) loc(line int) errz.SourceLocation {
	return c.pos(line).Location()
}

func (c *compiler) errorf(line int, format string, args ...any) error {
	return errz.Loadf(c.loc(line), format, args...)
}

func (c *compiler) push() {
	c.scopes = append(c.scopes, map[string]*vm.VariableDeclaration{})
}

func (c *compiler) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *compiler) declare(decl *vm.VariableDeclaration, line int) error {
	scope := c.scopes[len(c.scopes)-1]
	if _, ok := scope[decl.Name()]; ok {
		return c.errorf(line, "variable %q is already declared in this scope", decl.Name())
	}
	decl.SetPosition(c.pos(line))
	scope[decl.Name()] = decl
	c.s.info.AddVariable(decl)
	return nil
}

func (c *compiler) variable(name string, line int) (*vm.VariableDeclaration, error) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if decl, ok := c.scopes[i][name]; ok {
			return decl, nil
		}
	}
	for _, lib := range c.libs {
		if decl, ok := lib.variables[name]; ok {
			return decl, nil
		}
	}
	return nil, errz.Namef("unknown variable %q", name).Locate(c.loc(line))
}

func (c *compiler) lookupFunction(name string, line int) (*vm.FunctionDeclaration, error) {
	if fn, ok := c.functions[name]; ok {
		return fn, nil
	}
	for _, lib := range c.libs {
		if fn, ok := lib.functions[name]; ok {
			return fn, nil
		}
	}
	return nil, errz.Namef("unknown function %q", name).Locate(c.loc(line))
}

func (c *compiler) includes(doc *Document) error {
	dir := ""
	if c.id.Path != "" {
		dir = filepath.Dir(c.id.Path)
	}
	for _, path := range doc.Include {
		lib, err := c.s.include(c.s.loader.Resolve(path, dir), c.id, 0)
		if err != nil {
			return err
		}
		c.libs = append(c.libs, lib)
		c.robot.AddLibrary(lib.robot)
	}
	return nil
}

func (c *compiler) document(doc *Document) error {
	if doc.Args != nil {
		initial, err := c.optionalExpr(doc.Args.Default, doc.Args.Line)
		if err != nil {
			return err
		}
		decl := vm.NewVariableDeclaration(doc.Args.Name, initial)
		decl.TakeArgumentFrom(c.robot)
		if err := c.declare(decl, doc.Args.Line); err != nil {
			return err
		}
		c.robot.Add(decl)
	}

	// Functions are declared up front so that calls may precede the
	// declaration and functions may call themselves.
	for _, stmt := range doc.Body {
		if stmt.Kind != KindFunction {
			continue
		}
		if err := c.declareFunction(stmt); err != nil {
			return err
		}
	}
	return c.statements(c.robot.Block(), doc.Body)
}

func (c *compiler) declareFunction(stmt Statement) error {
	if _, ok := c.functions[stmt.Function]; ok {
		return c.errorf(stmt.Line, "function %q is already declared", stmt.Function)
	}
	if stmt.Function == "" {
		return c.errorf(stmt.Line, "function: a name is required")
	}
	c.push()
	defer c.pop()
	params := make([]*vm.VariableDeclaration, 0, len(stmt.Params))
	for _, p := range stmt.Params {
		var initial vm.Expression
		if p.Default != nil {
			expr, err := c.expr(p.Default, p.Line)
			if err != nil {
				return err
			}
			initial = expr
		}
		param := vm.NewParameter(p.Name, initial)
		if err := c.declare(param, p.Line); err != nil {
			return err
		}
		params = append(params, param)
	}
	body := vm.NewInstructionSet(nil)
	body.SetPosition(c.pos(stmt.Line))
	fn := vm.NewFunctionDeclaration(stmt.Function, params, body)
	fn.SetPosition(c.pos(stmt.Line))
	c.functions[stmt.Function] = fn
	return nil
}

func (c *compiler) statements(block *vm.InstructionSet, stmts []Statement) error {
	for _, stmt := range stmts {
		instr, err := c.statement(stmt)
		if err != nil {
			return err
		}
		instr.(vm.Positioned).SetPosition(c.pos(stmt.Line))
		block.Add(instr)
	}
	return nil
}

// block compiles statements into a new block with its own scope.
func (c *compiler) block(stmts []Statement, line int) (*vm.InstructionSet, error) {
	block := vm.NewInstructionSet(nil)
	block.SetPosition(c.pos(line))
	c.push()
	defer c.pop()
	return block, c.statements(block, stmts)
}

func (c *compiler) optionalBlock(stmts []Statement, line int) (*vm.InstructionSet, error) {
	if stmts == nil {
		return nil, nil
	}
	return c.block(stmts, line)
}

func (c *compiler) loop(stmts []Statement, line int) (*vm.InstructionSet, error) {
	c.loops++
	defer func() { c.loops-- }()
	return c.block(stmts, line)
}

func (c *compiler) statement(stmt Statement) (vm.Instruction, error) {
	line := stmt.Line
	switch stmt.Kind {
	case KindVar:
		if stmt.Var == "" {
			return nil, c.errorf(line, "var: a name is required")
		}
		// The initializer cannot see the variable it initializes.
		initial, err := c.optionalExpr(stmt.Value, line)
		if err != nil {
			return nil, err
		}
		decl := vm.NewVariableDeclaration(stmt.Var, initial)
		if err := c.declare(decl, line); err != nil {
			return nil, err
		}
		return decl, nil

	case KindAssign:
		target, err := c.variable(stmt.Assign, line)
		if err != nil {
			return nil, err
		}
		path, err := c.exprs(stmt.Path, line)
		if err != nil {
			return nil, err
		}
		value, err := c.expr(stmt.Value, line)
		if err != nil {
			return nil, err
		}
		return vm.NewAssign(target, path, value), nil

	case KindExpr:
		expr, err := c.expr(stmt.Expr, line)
		if err != nil {
			return nil, err
		}
		return vm.NewExpressionInstruction(expr), nil

	case KindIf:
		return c.ifStatement(stmt)

	case KindWhile:
		cond, err := c.expr(stmt.While, line)
		if err != nil {
			return nil, err
		}
		body, err := c.loop(stmt.Body, line)
		if err != nil {
			return nil, err
		}
		return vm.NewWhileInstruction(cond, body), nil

	case KindForeach:
		return c.foreach(stmt)

	case KindDo:
		return c.errorStatement(stmt)

	case KindFunction:
		return c.functionBody(stmt)

	case KindReturn:
		value, err := c.optionalExpr(stmt.Return, line)
		if err != nil {
			return nil, err
		}
		return vm.NewReturnInstruction(value), nil

	case KindBreak, KindContinue:
		if c.loops == 0 {
			return nil, c.errorf(line, "%s outside of a loop", stmt.Kind)
		}
		if stmt.Kind == KindBreak {
			return vm.NewBreakInstruction(), nil
		}
		return vm.NewContinueInstruction(), nil
	}
	return nil, c.errorf(line, "unknown statement kind %q", stmt.Kind)
}

func (c *compiler) ifStatement(stmt Statement) (vm.Instruction, error) {
	branches := make([]vm.ConditionalBranch, 0, 1+len(stmt.Elif))
	for i, b := range append([]Statement{stmt}, stmt.Elif...) {
		if b.Kind != KindIf || (i > 0 && (b.Elif != nil || b.Else != nil)) {
			return nil, c.errorf(b.Line, "elif: expected a mapping with if and then")
		}
		cond, err := c.expr(b.If, b.Line)
		if err != nil {
			return nil, err
		}
		body, err := c.block(b.Then, b.Line)
		if err != nil {
			return nil, err
		}
		branches = append(branches, vm.ConditionalBranch{Condition: cond, Body: body, Position: c.pos(b.Line)})
	}
	elseBody, err := c.optionalBlock(stmt.Else, stmt.Line)
	if err != nil {
		return nil, err
	}
	return vm.NewIfInstruction(branches, elseBody), nil
}

func (c *compiler) foreach(stmt Statement) (vm.Instruction, error) {
	line := stmt.Line
	if stmt.Foreach == "" {
		return nil, c.errorf(line, "foreach: a value variable is required")
	}
	source, err := c.expr(stmt.In, line)
	if err != nil {
		return nil, err
	}

	body := vm.NewInstructionSet(nil)
	body.SetPosition(c.pos(line))
	c.push()
	defer c.pop()
	valueVar := vm.NewVariableDeclaration(stmt.Foreach, nil)
	if err := c.declare(valueVar, line); err != nil {
		return nil, err
	}
	var keyVar *vm.VariableDeclaration
	if stmt.Key != "" {
		keyVar = vm.NewVariableDeclaration(stmt.Key, nil)
		if err := c.declare(keyVar, line); err != nil {
			return nil, err
		}
	}
	c.loops++
	defer func() { c.loops-- }()
	if err := c.statements(body, stmt.Body); err != nil {
		return nil, err
	}
	return vm.NewForeachInstruction(source, valueVar, keyVar, body), nil
}

func (c *compiler) errorStatement(stmt Statement) (vm.Instruction, error) {
	line := stmt.Line
	do, err := c.block(stmt.Do, line)
	if err != nil {
		return nil, err
	}
	success, err := c.optionalBlock(stmt.Success, line)
	if err != nil {
		return nil, err
	}

	var (
		onError *vm.InstructionSet
		cause   *vm.VariableDeclaration
	)
	if stmt.Error != nil || stmt.Cause != "" {
		onError = vm.NewInstructionSet(nil)
		onError.SetPosition(c.pos(line))
		c.push()
		if stmt.Cause != "" {
			cause = vm.NewVariableDeclaration(stmt.Cause, nil)
			if err := c.declare(cause, line); err != nil {
				c.pop()
				return nil, err
			}
		}
		err := c.statements(onError, stmt.Error)
		c.pop()
		if err != nil {
			return nil, err
		}
	}

	finally, err := c.optionalBlock(stmt.Finally, line)
	if err != nil {
		return nil, err
	}
	return vm.NewErrorInstruction(do, success, onError, finally, cause), nil
}

func (c *compiler) functionBody(stmt Statement) (vm.Instruction, error) {
	fn := c.functions[stmt.Function]
	if fn == nil || len(c.scopes) > 1 || c.function != nil {
		return nil, c.errorf(stmt.Line, "functions can only be declared at the top level")
	}

	scope := map[string]*vm.VariableDeclaration{}
	for _, param := range fn.Params() {
		scope[param.Name()] = param
	}
	c.scopes = append(c.scopes, scope)
	loops := c.loops
	c.function, c.loops = fn, 0
	defer func() {
		c.pop()
		c.function, c.loops = nil, loops
	}()

	// The body block sees the parameters; its own declarations go in a
	// nested scope so they may shadow them.
	c.push()
	defer c.pop()
	if err := c.statements(fn.Body(), stmt.Body); err != nil {
		return nil, err
	}
	return fn, nil
}

func (c *compiler) optionalExpr(e *Expr, line int) (vm.Expression, error) {
	if e == nil {
		return nil, nil
	}
	return c.expr(e, line)
}

func (c *compiler) exprs(es []*Expr, line int) ([]vm.Expression, error) {
	out := make([]vm.Expression, 0, len(es))
	for _, e := range es {
		expr, err := c.expr(e, line)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

func (c *compiler) expr(e *Expr, line int) (vm.Expression, error) {
	if e == nil {
		return vm.NewLiteral(object.Null), nil
	}
	if e.Line > 0 {
		line = e.Line
	}
	switch e.Kind {
	case ExprLit:
		return c.literal(e.Lit, line)

	case ExprRef:
		decl, err := c.variable(e.Ref, line)
		if err != nil {
			return nil, err
		}
		var expr vm.Expression = vm.NewVariableRef(decl)
		for _, p := range e.Path {
			index, err := c.expr(p, line)
			if err != nil {
				return nil, err
			}
			expr = vm.NewFromList(expr, index)
		}
		return expr, nil

	case ExprList:
		items, err := c.exprs(e.List, line)
		if err != nil {
			return nil, err
		}
		return vm.NewListExpression(items), nil

	case ExprObject:
		entries := make([]vm.MapEntry, 0, len(e.Object))
		for _, entry := range e.Object {
			value, err := c.expr(entry.Value, line)
			if err != nil {
				return nil, err
			}
			entries = append(entries, vm.MapEntry{Key: vm.NewLiteral(object.NewString(entry.Key)), Value: value})
		}
		return vm.NewMapExpression(entries), nil

	case ExprOp:
		return c.operation(e, line)

	case ExprNot, ExprNeg:
		operand, uop := e.Not, op.Not
		if e.Kind == ExprNeg {
			operand, uop = e.Neg, op.Negate
		}
		expr, err := c.expr(operand, line)
		if err != nil {
			return nil, err
		}
		return vm.NewUnaryOperation(uop, expr), nil

	case ExprCall:
		construct, ok := c.s.loader.constructs[e.Call]
		if !ok {
			return nil, errz.Namef("unknown construct %q", e.Call).Locate(c.loc(line))
		}
		args, err := c.exprs(e.Args, line)
		if err != nil {
			return nil, err
		}
		return vm.NewConstructCall(c.robot, construct, args), nil

	case ExprFn:
		fn, err := c.lookupFunction(e.Fn, line)
		if err != nil {
			return nil, err
		}
		if len(e.Args) > len(fn.Params()) {
			return nil, c.errorf(line, "function %q takes %d arguments, %d given", e.Fn, len(fn.Params()), len(e.Args))
		}
		args, err := c.exprs(e.Args, line)
		if err != nil {
			return nil, err
		}
		return vm.NewFunctionCall(fn, args), nil

	case ExprCallbot:
		path, err := c.expr(e.Callbot, line)
		if err != nil {
			return nil, err
		}
		arg, err := c.optionalExpr(e.Arg, line)
		if err != nil {
			return nil, err
		}
		return vm.NewCallRobotExpression(c.s.loader, c.robot, path, arg), nil

	case ExprRunbulk:
		path, err := c.expr(e.Runbulk, line)
		if err != nil {
			return nil, err
		}
		arg, err := c.optionalExpr(e.Arg, line)
		if err != nil {
			return nil, err
		}
		options, err := c.optionalExpr(e.Options, line)
		if err != nil {
			return nil, err
		}
		return vm.NewRunBulkExpression(c.s.loader, c.robot, path, arg, options), nil
	}
	return nil, c.errorf(line, "unknown expression kind %q", e.Kind)
}

// operation compiles op with its arguments. Unary operators take one
// argument and comparisons two; other binary operators fold any number of
// arguments from the left.
func (c *compiler) operation(e *Expr, line int) (vm.Expression, error) {
	info, err := op.Lookup(e.Op)
	if err != nil {
		return nil, c.errorf(line, "%s", err)
	}
	args, err := c.exprs(e.Args, line)
	if err != nil {
		return nil, err
	}
	switch {
	case info.IsUnary():
		if len(args) != 1 {
			return nil, c.errorf(line, "operator %q takes 1 argument, %d given", e.Op, len(args))
		}
		return vm.NewUnaryOperation(info.Unary, args[0]), nil
	case info.IsCompare() && len(args) != 2:
		return nil, c.errorf(line, "operator %q takes 2 arguments, %d given", e.Op, len(args))
	case len(args) < 2:
		return nil, c.errorf(line, "operator %q takes at least 2 arguments, %d given", e.Op, len(args))
	}
	expr := args[0]
	for _, right := range args[1:] {
		bin, err := vm.NewBinaryOperation(e.Op, expr, right)
		if err != nil {
			return nil, c.errorf(line, "%s", errz.Message(err))
		}
		expr = bin
	}
	return expr, nil
}

// literal compiles a constant. Sequences and mappings compile to
// constructors, so every evaluation yields a fresh container.
func (c *compiler) literal(node *yaml.Node, line int) (vm.Expression, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return vm.NewLiteral(object.Null), nil
		}
		return c.literal(node.Content[0], line)
	case yaml.AliasNode:
		return c.literal(node.Alias, line)
	case yaml.SequenceNode:
		items := make([]vm.Expression, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := c.literal(child, line)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return vm.NewListExpression(items), nil
	case yaml.MappingNode:
		entries := make([]vm.MapEntry, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			value, err := c.literal(node.Content[i+1], line)
			if err != nil {
				return nil, err
			}
			key := vm.NewLiteral(object.NewString(node.Content[i].Value))
			entries = append(entries, vm.MapEntry{Key: key, Value: value})
		}
		return vm.NewMapExpression(entries), nil
	}

	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, c.errorf(node.Line, "invalid literal: %s", err)
	}
	value, err := object.FromGo(raw)
	if err != nil {
		// Timestamps and other tagged scalars stay strings.
		value = object.NewString(node.Value)
	}
	return vm.NewLiteral(value), nil
}
